// cpu_interface.go - The contract between the ULA and a Z80 engine

package main

// BreakCause tells the caller why an execute call returned.
type BreakCause int

const (
	// BreakLimit: no break occurred. ExecuteWithLimit returns it when
	// the scan-line limit is reached; single-step calls return it when
	// the step completes normally.
	BreakLimit BreakCause = iota
	// BreakHalt: the CPU just executed HALT.
	BreakHalt
	// BreakWriteIo: a port write requested a break (e.g. a paging
	// port that must be observed before execution continues).
	BreakWriteIo
	// BreakReti: a RETI was executed while a device asked to observe
	// interrupt returns.
	BreakReti
)

// MemIoHost is what the CPU sees of the machine: memory and I/O
// callbacks timestamped by the frame clock. Contention is already
// accounted for by the clock before a callback fires.
type MemIoHost interface {
	// ReadMem returns the byte at addr.
	ReadMem(addr uint16, ts VideoTs) uint8
	// ReadMemM1 returns the opcode byte at addr during an M1 fetch;
	// ir carries the refresh address driving snow interference.
	ReadMemM1(addr uint16, ir uint16, ts VideoTs) uint8
	// WriteMem stores a byte at addr.
	WriteMem(addr uint16, val uint8, ts VideoTs)
	// ReadIO resolves a port read; ws is extra wait states to insert.
	ReadIO(port uint16, ts VideoTs) (data uint8, ws uint16)
	// WriteIO resolves a port write; brk requests a CPU break after
	// the current instruction completes.
	WriteIO(port uint16, val uint8, ts VideoTs) (ws uint16, brk bool)
	// IrqData returns the byte the interrupting device drives onto
	// the bus during the acknowledge cycle.
	IrqData(ts VideoTs) uint8
	// IsIrq reports whether the maskable interrupt line is active.
	IsIrq(ts VideoTs) bool
}

// CPU is the Z80 engine contract the ULA drives. The concrete engine
// in this repository implements it; an external engine can too.
type CPU interface {
	// ExecuteWithLimit runs instructions until the clock's scan line
	// reaches vslLimit or a break occurs.
	ExecuteWithLimit(host MemIoHost, clk *FrameClock, vslLimit int16) BreakCause
	// ExecuteNext runs a single instruction (or one halted M1 cycle).
	ExecuteNext(host MemIoHost, clk *FrameClock) BreakCause
	// ExecuteInstruction feeds the CPU one opcode, bypassing memory.
	ExecuteInstruction(host MemIoHost, clk *FrameClock, code uint8) BreakCause
	// NMI triggers the non-maskable interrupt; reports acceptance.
	NMI(host MemIoHost, clk *FrameClock) bool
	// Reset puts the CPU in its power-on state.
	Reset()

	PC() uint16
	SetPC(pc uint16)
	R() uint8
	AddR(delta int32)
	IsHalted() bool
}
