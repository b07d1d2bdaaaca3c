// Package stratum implements a Stratum v1 pool client: JSON-RPC-style
// id/method/params messages (no "jsonrpc" version field) over a
// newline-delimited TCP stream, translated into the internal/job source
// channel model.
package stratum

import (
	"encoding/json"

	"github.com/jbride/mujina/internal/mjerr"
)

// request is a client-to-pool JSON-RPC call.
type request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

// response is a pool reply keyed to a request ID.
type response struct {
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// notification is a pool-initiated message with no reply expected:
// mining.notify, mining.set_difficulty, mining.set_version_mask, client.reconnect.
type notification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// subscribeResult is the pool's reply to mining.subscribe: a list of
// subscription details (opaque to us), the extranonce1 to prefix onto our
// coinbase, and the extranonce2 size in bytes we must roll ourselves.
type subscribeResult struct {
	Extranonce1     string
	Extranonce2Size int
}

func parseSubscribeResult(raw json.RawMessage) (subscribeResult, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return subscribeResult{}, mjerr.WrapProtocol(err, "decoding mining.subscribe result")
	}
	if len(fields) < 3 {
		return subscribeResult{}, mjerr.ProtocolErr("mining.subscribe result has %d fields, want >= 3", len(fields))
	}
	var extranonce1 string
	if err := json.Unmarshal(fields[1], &extranonce1); err != nil {
		return subscribeResult{}, mjerr.WrapProtocol(err, "decoding extranonce1")
	}
	var extranonce2Size int
	if err := json.Unmarshal(fields[2], &extranonce2Size); err != nil {
		return subscribeResult{}, mjerr.WrapProtocol(err, "decoding extranonce2 size")
	}
	return subscribeResult{Extranonce1: extranonce1, Extranonce2Size: extranonce2Size}, nil
}

// jobNotification mirrors the nine positional fields of mining.notify.
type jobNotification struct {
	JobID          string
	PrevHash       string
	CoinbasePart1  string
	CoinbasePart2  string
	MerkleBranch   []string
	Version        string
	Bits           string
	Time           string
	CleanJobs      bool
}

func parseJobNotification(raw json.RawMessage) (jobNotification, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return jobNotification{}, mjerr.WrapProtocol(err, "decoding mining.notify params")
	}
	if len(fields) < 9 {
		return jobNotification{}, mjerr.ProtocolErr("mining.notify has %d fields, want 9", len(fields))
	}

	var j jobNotification
	strFields := []*string{&j.JobID, &j.PrevHash, &j.CoinbasePart1, &j.CoinbasePart2}
	for i, dst := range strFields {
		if err := json.Unmarshal(fields[i], dst); err != nil {
			return jobNotification{}, mjerr.WrapProtocol(err, "decoding mining.notify field %d", i)
		}
	}
	if err := json.Unmarshal(fields[4], &j.MerkleBranch); err != nil {
		return jobNotification{}, mjerr.WrapProtocol(err, "decoding merkle branch")
	}
	strFields = []*string{&j.Version, &j.Bits, &j.Time}
	for i, dst := range strFields {
		if err := json.Unmarshal(fields[5+i], dst); err != nil {
			return jobNotification{}, mjerr.WrapProtocol(err, "decoding mining.notify field %d", 5+i)
		}
	}
	if err := json.Unmarshal(fields[8], &j.CleanJobs); err != nil {
		return jobNotification{}, mjerr.WrapProtocol(err, "decoding clean_jobs flag")
	}
	return j, nil
}

// parseSetDifficulty extracts the single numeric argument of
// mining.set_difficulty.
func parseSetDifficulty(raw json.RawMessage) (float64, error) {
	var fields []float64
	if err := json.Unmarshal(raw, &fields); err != nil {
		return 0, mjerr.WrapProtocol(err, "decoding mining.set_difficulty params")
	}
	if len(fields) < 1 {
		return 0, mjerr.ProtocolErr("mining.set_difficulty has no fields")
	}
	return fields[0], nil
}
