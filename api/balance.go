package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// balanceOfSelector is the 4-byte selector of ERC-20 balanceOf(address).
const balanceOfSelector = "0x70a08231"

// usdceDecimals converts raw USDC.e units to dollars.
var usdceDecimals = big.NewFloat(1e6)

// BalanceOracle reads the USDC.e balance of a wallet via raw eth_call
// against a Polygon JSON-RPC endpoint, with one fallback endpoint.
type BalanceOracle struct {
	rpcURL      string
	fallbackURL string
	usdcAddress common.Address
	httpClient  *http.Client
}

// NewBalanceOracle creates an oracle against the given RPC endpoints.
func NewBalanceOracle(rpcURL, fallbackURL, usdcAddress string) *BalanceOracle {
	return &BalanceOracle{
		rpcURL:      rpcURL,
		fallbackURL: fallbackURL,
		usdcAddress: common.HexToAddress(usdcAddress),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Balance returns the wallet's USDC.e balance in dollars. The primary
// endpoint is tried first; on any failure the fallback is consulted before
// giving up.
func (o *BalanceOracle) Balance(ctx context.Context, wallet common.Address) (float64, error) {
	value, err := o.balanceVia(ctx, o.rpcURL, wallet)
	if err == nil {
		return value, nil
	}

	if o.fallbackURL == "" {
		return 0, err
	}

	log.Printf("[Balance] Primary RPC failed (%v), trying fallback", err)
	value, fallbackErr := o.balanceVia(ctx, o.fallbackURL, wallet)
	if fallbackErr != nil {
		return 0, fmt.Errorf("balance check failed on both endpoints: %v; fallback: %w", err, fallbackErr)
	}
	return value, nil
}

func (o *BalanceOracle) balanceVia(ctx context.Context, endpoint string, wallet common.Address) (float64, error) {
	// balanceOf(address) calldata: selector + address left-padded to 32 bytes
	addr := strings.ToLower(strings.TrimPrefix(wallet.Hex(), "0x"))
	calldata := balanceOfSelector + strings.Repeat("0", 64-len(addr)) + addr

	payload := rpcRequest{
		JSONRPC: "2.0",
		Method:  "eth_call",
		Params: []interface{}{
			map[string]string{
				"to":   o.usdcAddress.Hex(),
				"data": calldata,
			},
			"latest",
		},
		ID: 1,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("eth_call request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("eth_call returned %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return 0, fmt.Errorf("failed to decode eth_call response: %w", err)
	}
	if rpcResp.Error != nil {
		return 0, fmt.Errorf("eth_call error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if rpcResp.Result == "" || rpcResp.Result == "0x" {
		return 0, fmt.Errorf("eth_call returned empty result")
	}

	raw, ok := new(big.Int).SetString(strings.TrimPrefix(rpcResp.Result, "0x"), 16)
	if !ok {
		return 0, fmt.Errorf("unparseable eth_call result %q", rpcResp.Result)
	}

	dollars, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), usdceDecimals).Float64()
	return dollars, nil
}
