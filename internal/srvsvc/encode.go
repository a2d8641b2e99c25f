package srvsvc

import (
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/ndr"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/share"
)

// fixedOverhead accounts for the DCE/RPC + response headers, the union
// selector, entry_count, and the epilogue (total_entries, resume-handle
// referent+value, return_code) every fragment carries regardless of how
// many entries it holds (spec.md §4.3 "Fragmentation and backpressure").
const fixedOverhead = dcerpcHeaderSize + 4 + 4 + 16

const dcerpcHeaderSize = 16 + 8 // common header + response-specific fields

// entrySize estimates a share's serialized size at the given level,
// using the approximation spec.md §4.3 gives directly rather than a
// byte-exact NDR dry-run.
func entrySize(level uint32, s *share.Share) int {
	if level == 0 {
		return len(s.Name())*2 + 16
	}
	return len(s.Name())*2 + len(s.Comment())*2 + 36
}

// selectBatch picks a prefix of p.entries that fits p.maxSize's budget.
// The first entry is always included even if it alone exceeds budget,
// so a client whose max_size is smaller than one entry can't wedge the
// pipe into never making progress.
func (p *pipe) selectBatch() []*share.Share {
	budget := p.maxSize - fixedOverhead
	if budget < 0 {
		budget = 0
	}
	var selected []*share.Share
	used := 0
	for _, s := range p.entries {
		sz := entrySize(p.level, s)
		if len(selected) > 0 && used+sz > budget {
			break
		}
		selected = append(selected, s)
		used += sz
	}
	return selected
}

// encode produces one fragment's NDR response body (spec.md §4.3
// "Encoding phase") and reports whether entries remain queued. Entries
// included in this fragment are released and popped from the front of
// the queue (original_source's entry_processed callback). The two
// opnums have different bodies (spec.md §4.3): NetShareEnumAll's carries
// an entry count, a resume handle, and pagination; NetShareGetInfo's
// carries exactly one entry and no pagination fields at all.
func (p *pipe) encode() ([]byte, bool, error) {
	if p.opnum == OpNetShareGetInfo {
		return p.encodeGetInfo()
	}
	return p.encodeEnumAll()
}

// encodeEnumAll is spec.md §4.3's "Encoding phase" body for
// NetShareEnumAll: union selector, entry_count, referent array,
// deferred-data array, total_entries, resume handle, return code.
func (p *pipe) encodeEnumAll() ([]byte, bool, error) {
	w := ndr.NewWriter()
	w.WriteUnionSelector(p.level)

	selected := p.selectBatch()
	w.WriteUint32(uint32(len(selected)))

	for _, s := range selected {
		w.WriteReferent()
		if p.level == 1 {
			w.WriteUint32(uint32(s.Type()))
			w.WriteReferent()
		}
	}

	for _, s := range selected {
		if err := w.WriteConformantVaryingString(s.Name()); err != nil {
			return nil, false, err
		}
		if p.level == 1 {
			if err := w.WriteConformantVaryingString(s.Comment()); err != nil {
				return nil, false, err
			}
		}
	}

	moreData := len(selected) < len(p.entries)

	w.WriteUint32(uint32(p.totalEntries))
	if moreData {
		w.WriteUint32(1) // resume-handle referent sentinel, not from the pointer counter
		w.WriteUint32(0) // resume-handle value
		w.WriteUint32(errorMoreData)
	} else {
		w.WriteUint32(0)
		w.WriteUint32(0)
		w.WriteUint32(nerrSuccess)
	}

	for _, s := range selected {
		s.Release()
	}
	p.entries = p.entries[len(selected):]

	return w.Bytes(), moreData, nil
}

// encodeGetInfo is spec.md §4.3's "For NetShareGetInfo the body is:
// union selector, then exactly the one entry's referent plus its
// deferred data, then return code" — no entry_count, total_entries, or
// resume handle (original_source's srvsvc_share_get_info_return writes
// ndr_write_union_int32 + __ndr_write_array_of_structs(pipe, 1), then
// srvsvc_share_info_return appends the bare return code). invoke()
// guarantees exactly one entry ever reaches here; a missing share fails
// in write(), which resets the pipe to Idle before any READ.
func (p *pipe) encodeGetInfo() ([]byte, bool, error) {
	w := ndr.NewWriter()
	w.WriteUnionSelector(p.level)

	s := p.entries[0]
	w.WriteReferent()
	if p.level == 1 {
		w.WriteUint32(uint32(s.Type()))
		w.WriteReferent()
	}

	if err := w.WriteConformantVaryingString(s.Name()); err != nil {
		return nil, false, err
	}
	if p.level == 1 {
		if err := w.WriteConformantVaryingString(s.Comment()); err != nil {
			return nil, false, err
		}
	}

	w.WriteUint32(nerrSuccess)

	s.Release()
	p.entries = nil

	return w.Bytes(), false, nil
}
