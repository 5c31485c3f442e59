package uvcp

import (
	"encoding/binary"
	"fmt"
)

// Memory is byte addressed device memory.
type Memory interface {
	ReadMemory(address uint64, length int) ([]byte, error)
	WriteMemory(address uint64, data []byte) error
}

// Registers exposes device memory as 32-bit little-endian registers, with
// register i of a block living at address+4*i. Raw byte access passes
// through unchanged.
type Registers struct {
	mem Memory
}

func NewRegisters(mem Memory) *Registers {
	return &Registers{mem: mem}
}

func (r *Registers) ReadMemory(address uint64, length int) ([]byte, error) {
	return r.mem.ReadMemory(address, length)
}

func (r *Registers) WriteMemory(address uint64, data []byte) error {
	return r.mem.WriteMemory(address, data)
}

func (r *Registers) ReadRegisters(address uint64, count int) ([]uint32, error) {
	if count == 0 {
		return []uint32{}, nil
	}
	raw, err := r.mem.ReadMemory(address, 4*count)
	if err != nil {
		return nil, err
	}
	if len(raw) != 4*count {
		return nil, fmt.Errorf("read %d registers at 0x%x: %w", count, address, ErrSizeMismatch)
	}
	values := make([]uint32, count)
	for i := range values {
		values[i] = binary.LittleEndian.Uint32(raw[4*i:])
	}
	return values, nil
}

func (r *Registers) ReadRegister(address uint64) (uint32, error) {
	values, err := r.ReadRegisters(address, 1)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

func (r *Registers) WriteRegisters(address uint64, values []uint32) error {
	if len(values) == 0 {
		return nil
	}
	raw := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[4*i:], v)
	}
	return r.mem.WriteMemory(address, raw)
}

func (r *Registers) WriteRegister(address uint64, value uint32) error {
	return r.WriteRegisters(address, []uint32{value})
}
