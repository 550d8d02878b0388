package client

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
)

const weiPerEth = 1e18

// GasEstimator reads the current gas price from an Ethereum RPC endpoint and
// converts it into an approximate per-hop settlement cost in quote currency.
type GasEstimator struct {
	eth        *ethclient.Client
	gasPerSwap uint64
	ethPrice   float64
}

// NewGasEstimator dials the RPC endpoint. gasPerSwap is the assumed gas a
// single swap consumes; ethPrice converts the wei cost into quote currency.
func NewGasEstimator(rpcURL string, gasPerSwap uint64, ethPrice float64) (*GasEstimator, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial eth rpc: %w", err)
	}
	return &GasEstimator{eth: eth, gasPerSwap: gasPerSwap, ethPrice: ethPrice}, nil
}

// Estimate returns the estimated cost of one on-chain hop.
func (g *GasEstimator) Estimate(ctx context.Context) (float64, error) {
	gasPrice, err := g.eth.SuggestGasPrice(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch gas price: %w", err)
	}

	wei := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(g.gasPerSwap))
	eth, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(weiPerEth)).Float64()
	return eth * g.ethPrice, nil
}

func (g *GasEstimator) Close() {
	g.eth.Close()
}
