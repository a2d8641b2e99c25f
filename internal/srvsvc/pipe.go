// Package srvsvc implements the DCE/RPC srvsvc named-pipe engine:
// NetrShareEnumAll and NetrShareGetInfo over the NDR transfer syntax,
// with peer-max_size-aware fragmentation and backpressure (spec.md
// §4.3, "the hard part").
package srvsvc

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/sergey-senozhatsky/cifsd-tools2/internal/dcerpc"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/handlers"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/logger"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/metrics"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/ndr"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/share"
)

// State is one point in a pipe's OPEN/WRITE/READ/CLOSE lifecycle
// (spec.md §4.3 "State machine of a pipe").
type State int

const (
	StateIdle State = iota
	StateArgsParsed
	StateInvoked
	StateEmitting
	StateMoreData
	StateComplete
)

// pipe is one open srvsvc instance: the parsed request, the entry
// sequence still to be emitted, and enough DCE/RPC framing context to
// answer successive READs as independent PDUs.
type pipe struct {
	mu sync.Mutex

	state State

	opnum         uint16
	callID        uint32
	contextID     uint16
	level         uint32
	maxSize       int
	shareNameHint string // NetShareGetInfo's requested share name

	entries      []*share.Share // front = next to emit; released as consumed
	totalEntries int            // fixed at invoke time, repeated in every fragment
}

// Manager tracks open srvsvc pipe instances, keyed by the kernel's
// pipe id, and implements handlers.PipeManager.
type Manager struct {
	shares *share.Registry

	// Metrics records per-opnum dispatch outcomes and fragmentation
	// counts; nil is a valid no-op (see internal/metrics.Null).
	Metrics *metrics.Metrics

	mu    sync.Mutex
	pipes map[uint64]*pipe
}

// NewManager constructs a Manager bound to the share registry entries
// are enumerated/looked up from.
func NewManager(shares *share.Registry) *Manager {
	return &Manager{shares: shares, pipes: make(map[uint64]*pipe), Metrics: metrics.Null()}
}

func opnumLabel(opnum uint16) string {
	switch opnum {
	case OpNetShareEnumAll:
		return "NetrShareEnumAll"
	case OpNetShareGetInfo:
		return "NetrShareGetInfo"
	default:
		return strconv.Itoa(int(opnum))
	}
}

func statusLabel(status uint32) string {
	switch status {
	case StatusOK:
		return "ok"
	case StatusBadData:
		return "bad_data"
	case StatusInvalidLevel:
		return "invalid_level"
	case StatusNotImplemented:
		return "not_implemented"
	case StatusMoreData:
		return "more_data"
	default:
		return strconv.FormatUint(uint64(status), 10)
	}
}

var _ handlers.PipeManager = (*Manager)(nil)

// Dispatch implements handlers.PipeManager.
func (m *Manager) Dispatch(ctx context.Context, pipeID uint64, method uint32, maxSize int, stub []byte) ([]byte, uint32, error) {
	switch {
	case method&handlers.RPCMethodOpen != 0:
		return nil, m.open(pipeID), nil
	case method&handlers.RPCMethodClose != 0:
		return nil, m.close(pipeID), nil
	case method&handlers.RPCMethodWrite != 0:
		return nil, m.write(ctx, pipeID, stub), nil
	case method&handlers.RPCMethodRead != 0:
		return m.read(ctx, pipeID, maxSize)
	case method&handlers.RPCMethodIoctl != 0:
		if status := m.write(ctx, pipeID, stub); status != StatusOK {
			return nil, status, nil
		}
		return m.read(ctx, pipeID, maxSize)
	default:
		return nil, StatusNotImplemented, nil
	}
}

func (m *Manager) open(pipeID uint64) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pipes[pipeID] = &pipe{state: StateIdle}
	return StatusOK
}

// close releases every entry still queued (srvsvc_share_entry_processed
// in original_source, applied to the whole remaining sequence) and
// forgets the pipe.
func (m *Manager) close(pipeID uint64) uint32 {
	m.mu.Lock()
	p, ok := m.pipes[pipeID]
	delete(m.pipes, pipeID)
	m.mu.Unlock()
	if !ok {
		return StatusOK
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releaseAll()
	return StatusOK
}

func (p *pipe) releaseAll() {
	for _, s := range p.entries {
		s.Release()
	}
	p.entries = nil
}

func (m *Manager) lookup(pipeID uint64) (*pipe, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pipes[pipeID]
	return p, ok
}

// write parses the request PDU, validates the opnum/level, and invokes
// the corresponding share lookup/enumeration, moving the pipe
// Idle->ArgsParsed->Invoked. A validation failure resets the pipe
// before returning its status (spec.md §4.3 "Error policy").
func (m *Manager) write(ctx context.Context, pipeID uint64, stub []byte) (status uint32) {
	p, ok := m.lookup(pipeID)
	if !ok {
		return StatusBadData
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	req, err := dcerpc.ParseRequest(stub)
	if err != nil {
		logger.WarnCtx(ctx, "srvsvc: malformed request PDU", "error", err)
		p.releaseAll()
		p.state = StateIdle
		return StatusBadData
	}

	p.opnum = req.OpNum
	p.callID = req.Header.CallID
	p.contextID = req.ContextID
	p.state = StateArgsParsed

	defer func() { m.Metrics.RecordRPCOp(opnumLabel(p.opnum), statusLabel(status)) }()

	r := ndr.NewReader(req.StubData)

	switch req.OpNum {
	case OpNetShareEnumAll:
		if err := parseEnumAllArgs(r, p); err != nil {
			logger.WarnCtx(ctx, "srvsvc: bad NetShareEnumAll args", "error", err)
			p.releaseAll()
			p.state = StateIdle
			return StatusBadData
		}
	case OpNetShareGetInfo:
		name, err := parseGetInfoArgs(r, p)
		if err != nil {
			logger.WarnCtx(ctx, "srvsvc: bad NetShareGetInfo args", "error", err)
			p.releaseAll()
			p.state = StateIdle
			return StatusBadData
		}
		p.shareNameHint = name
	default:
		logger.WarnCtx(ctx, "srvsvc: unsupported opnum", "opnum", req.OpNum)
		p.state = StateIdle
		return StatusNotImplemented
	}

	if p.level != 0 && p.level != 1 {
		p.state = StateIdle
		return StatusInvalidLevel
	}

	p.state = StateInvoked
	if err := m.invoke(p); err != nil {
		p.releaseAll()
		p.state = StateIdle
		return StatusBadData
	}
	return StatusOK
}

// invoke performs the share lookup/enumeration for the parsed request,
// populating p.entries (spec.md §4.3 "Invocation phase").
func (m *Manager) invoke(p *pipe) error {
	switch p.opnum {
	case OpNetShareEnumAll:
		var entries []*share.Share
		m.shares.ForEach(func(s *share.Share) bool {
			if s.Browseable() {
				entries = append(entries, s.Acquire())
			}
			return true
		})
		p.entries = entries
		p.totalEntries = len(entries)
		return nil
	case OpNetShareGetInfo:
		s, ok := m.shares.Lookup(p.shareNameHint)
		if !ok {
			return fmt.Errorf("srvsvc: no such share %q", p.shareNameHint)
		}
		p.entries = []*share.Share{s}
		p.totalEntries = 1
		return nil
	default:
		return fmt.Errorf("srvsvc: unsupported opnum %d", p.opnum)
	}
}

// read drains one response PDU, selecting as many queued entries as fit
// within the request's max_size argument (lowered to maxSize when maxSize
// is positive and smaller) and marking the pipe MoreData if any remain
// (spec.md §4.3 "Fragmentation and backpressure").
func (m *Manager) read(ctx context.Context, pipeID uint64, maxSize int) ([]byte, uint32, error) {
	p, ok := m.lookup(pipeID)
	if !ok {
		return nil, StatusBadData, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateInvoked && p.state != StateMoreData {
		return nil, StatusBadData, nil
	}
	// The opening fragment of this invocation's reply sequence is the
	// one READ that finds the pipe still in Invoked; every later READ
	// (MoreData) continues that same sequence, so only it may carry
	// FIRST_FRAG (spec.md §4.2).
	firstFrag := p.state == StateInvoked
	p.state = StateEmitting
	if maxSize > 0 && maxSize < p.maxSize {
		p.maxSize = maxSize
	}

	stub, moreData, err := p.encode()
	if err != nil {
		p.releaseAll()
		p.state = StateIdle
		return nil, StatusBadData, nil
	}

	// Entries never straddle a fragment (selectBatch bounds every batch
	// to p.maxSize), so byte-level splitting is disabled here; FrameResponse
	// is still the single place that decides FIRST_FRAG/LAST_FRAG.
	pdu := dcerpc.FrameResponse(p.callID, p.contextID, stub, 0, firstFrag, !moreData)[0]

	if moreData {
		p.state = StateMoreData
		m.Metrics.RecordFragment(opnumLabel(p.opnum))
		logger.DebugCtx(ctx, "srvsvc: more data pending", "remaining", len(p.entries))
		return pdu, StatusMoreData, nil
	}

	p.state = StateComplete
	p.releaseAll()
	p.state = StateIdle
	return pdu, StatusOK, nil
}
