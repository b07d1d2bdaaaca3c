package stratum

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/jbride/mujina/internal/job"
	"github.com/jbride/mujina/internal/logging"
	"github.com/jbride/mujina/internal/mjerr"
)

var log = logging.New("stratum")

// FloodPreventionInterval is a client-side floor on submit spacing,
// guarding against a misconfigured pool (or a difficulty bug) flooding
// submissions at a rate neither side intends. It is deliberately loose —
// far above any pool's real vardiff target rate — so it never masks the
// share flow a pool's own vardiff algorithm needs to see.
const FloodPreventionInterval = 100 * time.Millisecond

// Config describes one pool connection.
type Config struct {
	Addr     string // host:port, no scheme
	User     string
	Password string
}

// Client is a Stratum v1 pool connection that behaves as an
// internal/job source: it pushes SourceEvent on connect/job change and
// receives SourceCommand (share submits, hash-rate reports) through the
// handle it hands out.
type Client struct {
	cfg    Config
	events chan<- job.SourceEvent

	commands chan job.SourceCommand
	done     chan struct{}
	handle   job.SourceHandle

	conn            *connection
	extranonce1     []byte
	extranonce2Size int
	difficulty      float64
	currentJobID    string

	lastSubmit time.Time
}

// NewClient builds a Client. events is the channel the owner (typically
// the backplane or a dispatcher sitting above it) reads SourceEvents from;
// Handle() is what hash threads use to submit shares back to this pool.
func NewClient(cfg Config, events chan<- job.SourceEvent) *Client {
	commands := make(chan job.SourceCommand, 64)
	done := make(chan struct{})
	return &Client{
		cfg:        cfg,
		events:     events,
		commands:   commands,
		done:       done,
		handle:     job.New(cfg.Addr, commands, done),
		difficulty: 1,
	}
}

// Handle returns the SourceHandle hash threads use to submit shares and
// hash-rate reports against this pool connection.
func (c *Client) Handle() job.SourceHandle {
	return c.handle
}

// Run connects, subscribes, authorizes, and then services both pool
// notifications and outgoing SourceCommands until ctx is cancelled or the
// connection drops. It does not reconnect; callers that want reconnection
// should call Run again in a fresh Client, since subscription state
// (extranonce1, job IDs) does not carry over a reconnect.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.done)

	conn, err := dial(ctx, c.cfg.Addr)
	if err != nil {
		return err
	}
	c.conn = conn
	defer conn.close()

	if err := c.subscribe(); err != nil {
		return err
	}
	if err := c.authorize(); err != nil {
		return err
	}

	lines := make(chan []byte)
	readErrs := make(chan error, 1)
	go func() {
		for {
			line, err := conn.readLine()
			if err != nil {
				readErrs <- err
				return
			}
			lines <- line
		}
	}()

	c.events <- job.SourceEvent{Kind: job.EventClearJobs}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErrs:
			return err
		case line := <-lines:
			if err := c.handleLine(line); err != nil {
				log.Printf("dropping malformed message from %s: %v", c.cfg.Addr, err)
			}
		case cmd := <-c.commands:
			c.handleCommand(cmd)
		}
	}
}

func (c *Client) subscribe() error {
	if _, err := c.conn.call("mining.subscribe", []any{"mujina"}); err != nil {
		return err
	}
	line, err := c.conn.readLine()
	if err != nil {
		return err
	}
	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return mjerr.WrapProtocol(err, "decoding mining.subscribe response")
	}
	if len(resp.Error) > 0 && string(resp.Error) != "null" {
		return mjerr.ProtocolErr("mining.subscribe rejected: %s", resp.Error)
	}
	sub, err := parseSubscribeResult(resp.Result)
	if err != nil {
		return err
	}
	extranonce1, err := hex.DecodeString(sub.Extranonce1)
	if err != nil {
		return mjerr.WrapProtocol(err, "decoding extranonce1 hex")
	}
	c.extranonce1 = extranonce1
	c.extranonce2Size = sub.Extranonce2Size
	return nil
}

func (c *Client) authorize() error {
	if _, err := c.conn.call("mining.authorize", []any{c.cfg.User, c.cfg.Password}); err != nil {
		return err
	}
	line, err := c.conn.readLine()
	if err != nil {
		return err
	}
	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return mjerr.WrapProtocol(err, "decoding mining.authorize response")
	}
	var ok bool
	if err := json.Unmarshal(resp.Result, &ok); err != nil {
		return mjerr.WrapProtocol(err, "decoding mining.authorize result")
	}
	if !ok {
		return mjerr.ProtocolErr("pool rejected authorization for %s", c.cfg.User)
	}
	return nil
}

func (c *Client) handleLine(line []byte) error {
	var notif notification
	if err := json.Unmarshal(line, &notif); err != nil {
		return mjerr.WrapProtocol(err, "decoding pool message")
	}
	if notif.Method == "" {
		// A response to a call we don't track synchronously (e.g. an
		// mining.submit ack) — share acceptance is inferred from the
		// absence of an explicit error, which is logged, not surfaced.
		var resp response
		if err := json.Unmarshal(line, &resp); err == nil && len(resp.Error) > 0 && string(resp.Error) != "null" {
			log.Printf("pool %s rejected request %v: %s", c.cfg.Addr, derefID(resp.ID), resp.Error)
		}
		return nil
	}

	switch notif.Method {
	case "mining.notify":
		return c.handleNotify(notif.Params)
	case "mining.set_difficulty":
		diff, err := parseSetDifficulty(notif.Params)
		if err != nil {
			return err
		}
		c.difficulty = diff
		return nil
	default:
		return nil
	}
}

func (c *Client) handleNotify(params json.RawMessage) error {
	notif, err := parseJobNotification(params)
	if err != nil {
		return err
	}

	prevHash, err := reversedHash(notif.PrevHash)
	if err != nil {
		return mjerr.WrapProtocol(err, "decoding prevhash")
	}
	version, err := parseHexUint32(notif.Version)
	if err != nil {
		return mjerr.WrapProtocol(err, "decoding version")
	}
	bits, err := parseHexUint32(notif.Bits)
	if err != nil {
		return mjerr.WrapProtocol(err, "decoding bits")
	}
	ntime, err := parseHexUint32(notif.Time)
	if err != nil {
		return mjerr.WrapProtocol(err, "decoding time")
	}

	coinbasePrefix, err := hex.DecodeString(notif.CoinbasePart1)
	if err != nil {
		return mjerr.WrapProtocol(err, "decoding coinbase part 1")
	}
	coinbaseSuffix, err := hex.DecodeString(notif.CoinbasePart2)
	if err != nil {
		return mjerr.WrapProtocol(err, "decoding coinbase part 2")
	}
	coinbasePrefix = append(append([]byte{}, coinbasePrefix...), c.extranonce1...)

	branch := make([]chainhash.Hash, 0, len(notif.MerkleBranch))
	for _, h := range notif.MerkleBranch {
		raw, err := hex.DecodeString(h)
		if err != nil {
			return mjerr.WrapProtocol(err, "decoding merkle branch entry")
		}
		var entry chainhash.Hash
		copy(entry[:], raw)
		branch = append(branch, entry)
	}

	template := job.JobTemplate{
		ID:             notif.JobID,
		PrevBlockHash:  prevHash,
		Version:        version,
		Bits:           bits,
		ShareTarget:    job.DifficultyToTarget(uint64(c.difficulty)),
		Time:           ntime,
		MerkleKind:     job.MerkleRootComputed,
		CoinbasePrefix: coinbasePrefix,
		CoinbaseSuffix: coinbaseSuffix,
		MerkleBranch:   branch,
	}

	kind := job.EventUpdateJob
	if notif.CleanJobs {
		kind = job.EventReplaceJob
	}
	c.currentJobID = notif.JobID
	c.events <- job.SourceEvent{Kind: kind, Template: template}
	return nil
}

func (c *Client) handleCommand(cmd job.SourceCommand) {
	switch cmd.Kind {
	case job.CommandSubmitShare:
		c.submitShare(cmd.Share)
	case job.CommandUpdateHashRate:
		// Hash-rate reports have no pool-facing RPC in Stratum v1; they
		// exist for the status API (internal/status) to read, which
		// listens on a separate fan-out the caller sets up, not here.
	}
}

func (c *Client) submitShare(share job.Share) {
	if time.Since(c.lastSubmit) < FloodPreventionInterval {
		log.Printf("dropping share for job %s: flood prevention cap", share.JobID)
		return
	}
	c.lastSubmit = time.Now()

	params := []any{
		c.cfg.User,
		share.JobID,
		hex.EncodeToString(share.Extranonce2),
		strconv.FormatUint(uint64(share.Time), 16),
		strconv.FormatUint(uint64(share.Nonce), 16),
	}
	if _, err := c.conn.call("mining.submit", params); err != nil {
		log.Printf("submitting share for job %s: %v", share.JobID, err)
	}
}

func parseHexUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func derefID(id *uint64) uint64 {
	if id == nil {
		return 0
	}
	return *id
}

// reversedHash decodes a Stratum-order hex hash (little-endian 32-bit
// words) into a chainhash.Hash in the byte order blockchain code expects.
func reversedHash(s string) (chainhash.Hash, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return chainhash.Hash{}, err
	}
	var h chainhash.Hash
	if len(raw) != len(h) {
		return chainhash.Hash{}, mjerr.ProtocolErr("hash has %d bytes, want %d", len(raw), len(h))
	}
	for word := 0; word < len(raw)/4; word++ {
		for b := 0; b < 4; b++ {
			h[word*4+b] = raw[word*4+(3-b)]
		}
	}
	return h, nil
}
