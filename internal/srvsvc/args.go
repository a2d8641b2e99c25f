package srvsvc

import (
	"fmt"

	"github.com/sergey-senozhatsky/cifsd-tools2/internal/ndr"
)

// parseEnumAllArgs reads NetShareEnumAll's argument layout (spec.md §4.3
// "Request parsing") into p, validating the container-pointer discipline
// the real protocol requires (a client always starts enumeration with an
// empty, unallocated container).
func parseEnumAllArgs(r *ndr.Reader, p *pipe) error {
	if err := readOptionalServerName(r); err != nil {
		return err
	}

	level, err := r.ReadUnionSelector()
	if err != nil {
		return err
	}
	if _, err := r.ReadUint32(); err != nil { // switch selector, repeats level
		return err
	}
	containerRef, err := r.ReadReferent()
	if err != nil {
		return err
	}
	if containerRef == 0 {
		return fmt.Errorf("srvsvc: null container referent")
	}
	containerSize, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if containerSize != 0 {
		return fmt.Errorf("srvsvc: container array size %d, want 0", containerSize)
	}
	containerPtr, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if containerPtr != 0 {
		return fmt.Errorf("srvsvc: container array pointer must be null")
	}
	maxSize, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if _, err := r.ReadReferent(); err != nil { // resume handle referent, ignored
		return err
	}
	if _, err := r.ReadUint32(); err != nil { // resume handle value, ignored
		return err
	}

	p.level = level
	p.maxSize = int(maxSize)
	return nil
}

// parseGetInfoArgs reads NetShareGetInfo's argument layout and returns
// the requested share name.
func parseGetInfoArgs(r *ndr.Reader, p *pipe) (string, error) {
	if err := readOptionalServerName(r); err != nil {
		return "", err
	}

	nameRef, err := r.ReadReferent()
	if err != nil {
		return "", err
	}
	if nameRef == 0 {
		return "", fmt.Errorf("srvsvc: null share name referent")
	}
	name, err := r.ReadConformantVaryingString()
	if err != nil {
		return "", err
	}

	level, err := r.ReadUnionSelector()
	if err != nil {
		return "", err
	}
	p.level = level
	return name, nil
}

// readOptionalServerName consumes the leading unique-referent server
// name both opnums carry; its value is never used by this daemon (the
// kernel engine already knows which server it is).
func readOptionalServerName(r *ndr.Reader) error {
	ref, err := r.ReadReferent()
	if err != nil {
		return err
	}
	if ref == 0 {
		return nil
	}
	_, err = r.ReadConformantVaryingString()
	return err
}
