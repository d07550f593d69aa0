package ethchain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/kiko1842/vaultwire/internal/calldata"
	"github.com/kiko1842/vaultwire/internal/chain"
)

func (c *Client) Send(ctx context.Context, call chain.Call) (chain.Receipt, error) {
	data, err := calldata.Encode(call.Method, call.Args)
	if err != nil {
		return chain.Receipt{}, err
	}
	receipt, err := c.transact(ctx, &call.Target, data)
	if err != nil {
		return chain.Receipt{}, fmt.Errorf("%s: %w", call, err)
	}
	return toReceipt(receipt), nil
}

func (c *Client) Read(ctx context.Context, call chain.Call) ([]any, error) {
	m, err := calldata.ParseSignature(call.Method)
	if err != nil {
		return nil, err
	}
	data, err := m.Encode(call.Args)
	if err != nil {
		return nil, err
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{From: c.sender, To: &call.Target, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", chain.ErrReverted, call, err)
	}
	values, err := m.Decode(out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", call, err)
	}
	return values, nil
}
