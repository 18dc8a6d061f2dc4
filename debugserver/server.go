// Package debugserver exposes the CPU core's introspection API over HTTP.
package debugserver

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/r3ksim/emu"
	"github.com/sarchlab/r3ksim/timing/core"
)

// DefaultRunTicks bounds run, step-over and step-out requests that do not
// name a tick budget.
const DefaultRunTicks = 1 << 24

// maxMemoryRead caps a single memory read request.
const maxMemoryRead = 64 * 1024

// Register is one entry of the debugger register list.
type Register struct {
	Name  string `json:"name"`
	Value uint32 `json:"value"`
}

// StateResponse summarises the execution state.
type StateResponse struct {
	PC               uint32 `json:"pc"`
	NPC              uint32 `json:"npc"`
	Instruction      string `json:"instruction"`
	InDelaySlot      bool   `json:"in_delay_slot"`
	UserMode         bool   `json:"user_mode"`
	CacheControl     uint32 `json:"cache_control"`
	Ticks            uint64 `json:"ticks"`
	Instructions     uint64 `json:"instructions"`
	Halted           bool   `json:"halted"`
	BreakpointHit    bool   `json:"breakpoint_hit"`
	TraceEnabled     bool   `json:"trace_enabled"`
	PendingTicks     int32  `json:"pending_ticks"`
	Downcount        int32  `json:"downcount"`
	CurrentInstrAddr uint32 `json:"current_instruction_pc"`
}

// BreakpointRequest adds a breakpoint.
type BreakpointRequest struct {
	Address   string `json:"address"`
	AutoClear bool   `json:"auto_clear"`
	Enabled   *bool  `json:"enabled"`
}

// BreakpointResponse describes an installed breakpoint.
type BreakpointResponse struct {
	Address   uint32 `json:"address"`
	Number    uint32 `json:"number"`
	HitCount  uint32 `json:"hit_count"`
	AutoClear bool   `json:"auto_clear"`
	Enabled   bool   `json:"enabled"`
	Condition bool   `json:"condition"`
}

// MemoryResponse carries a block of memory as hex.
type MemoryResponse struct {
	Address uint32 `json:"address"`
	Data    string `json:"data"`
}

// MemoryWriteRequest writes hex data at an address.
type MemoryWriteRequest struct {
	Data string `json:"data"`
}

// StepResponse reports a single step.
type StepResponse struct {
	Retired       bool   `json:"retired"`
	PC            uint32 `json:"pc"`
	Ticks         int32  `json:"ticks"`
	Exception     bool   `json:"exception"`
	Code          string `json:"code,omitempty"`
	BreakpointHit bool   `json:"breakpoint_hit"`
}

// RunResponse reports a run request.
type RunResponse struct {
	PC            uint32 `json:"pc"`
	Running       bool   `json:"running"`
	BreakpointHit bool   `json:"breakpoint_hit"`
	Ticks         uint64 `json:"ticks"`
}

// Server serialises debugger requests against one core.
type Server struct {
	mu     sync.Mutex
	core   *core.Core
	cpu    *emu.CPU
	echo   *echo.Echo
	trace  bytes.Buffer
	logger logrus.FieldLogger
}

// New creates a Server for c and registers its routes.
func New(c *core.Core) *Server {
	s := &Server{
		core:   c,
		cpu:    c.CPU,
		echo:   echo.New(),
		logger: c.CPU.Logger(),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.GET("/state", s.getState)
	s.echo.GET("/registers", s.getRegisters)
	s.echo.GET("/memory/:addr", s.getMemory)
	s.echo.PUT("/memory/:addr", s.putMemory)
	s.echo.GET("/disasm/:addr", s.getDisassembly)

	s.echo.GET("/breakpoints", s.getBreakpoints)
	s.echo.POST("/breakpoints", s.addBreakpoint)
	s.echo.DELETE("/breakpoints", s.clearBreakpoints)
	s.echo.DELETE("/breakpoints/:addr", s.removeBreakpoint)

	s.echo.POST("/step", s.step)
	s.echo.POST("/step-over", s.stepOver)
	s.echo.POST("/step-out", s.stepOut)
	s.echo.POST("/run", s.run)

	s.echo.POST("/trace/start", s.startTrace)
	s.echo.POST("/trace/stop", s.stopTrace)
	s.echo.GET("/trace", s.getTrace)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until the server is shut down.
func (s *Server) Start(addr string) error {
	s.logger.WithField("addr", addr).Info("debug server listening")
	return s.echo.Start(addr)
}

// Close stops the listener.
func (s *Server) Close() error {
	return s.echo.Close()
}

func parseAddress(v string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(v), 0, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("bad address %q", v))
	}
	return uint32(n), nil
}

func queryUint(c echo.Context, name string, def uint64) (uint64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 0, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("bad %s %q", name, v))
	}
	return n, nil
}

func (s *Server) getState(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.cpu.State()
	stats := s.core.Stats()
	return c.JSON(http.StatusOK, StateResponse{
		PC:               st.PC,
		NPC:              st.NPC,
		Instruction:      s.cpu.FormatInstruction(st.CurrentInstruction.Word, st.CurrentInstructionPC),
		InDelaySlot:      st.CurrentInstructionInBranchDelaySlot,
		UserMode:         st.InUserMode(),
		CacheControl:     s.cpu.CacheControlValue(),
		Ticks:            stats.Ticks,
		Instructions:     stats.Instructions,
		Halted:           s.core.Halted(),
		BreakpointHit:    s.cpu.BreakpointHit(),
		TraceEnabled:     s.cpu.IsTraceEnabled(),
		PendingTicks:     st.PendingTicks,
		Downcount:        st.Downcount,
		CurrentInstrAddr: st.CurrentInstructionPC,
	})
}

func (s *Server) getRegisters(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.cpu.DebuggerRegisters()
	out := make([]Register, len(list))
	for i, r := range list {
		out[i] = Register{Name: r.Name, Value: *r.Value}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) getMemory(c echo.Context) error {
	addr, err := parseAddress(c.Param("addr"))
	if err != nil {
		return err
	}
	n, err := queryUint(c, "len", 16)
	if err != nil {
		return err
	}
	if n == 0 || n > maxMemoryRead {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("len must be 1..%d", maxMemoryRead))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, n)
	if !s.cpu.SafeReadMemory(addr, buf) {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("0x%08X is not readable", addr))
	}
	return c.JSON(http.StatusOK, MemoryResponse{Address: addr, Data: hex.EncodeToString(buf)})
}

func (s *Server) putMemory(c echo.Context) error {
	addr, err := parseAddress(c.Param("addr"))
	if err != nil {
		return err
	}
	var req MemoryWriteRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	data, err := hex.DecodeString(req.Data)
	if err != nil || len(data) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "data must be non-empty hex")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cpu.SafeWriteMemory(addr, data) {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("0x%08X is not writable", addr))
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getDisassembly(c echo.Context) error {
	addr, err := parseAddress(c.Param("addr"))
	if err != nil {
		return err
	}
	before, err := queryUint(c, "before", 0)
	if err != nil {
		return err
	}
	after, err := queryUint(c, "after", 8)
	if err != nil {
		return err
	}
	if before+after > 1024 {
		return echo.NewHTTPError(http.StatusBadRequest, "range too large")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]string, 0, before+after+1)
	start := addr - uint32(before)*4
	for i := uint32(0); i <= uint32(before+after); i++ {
		pc := start + i*4
		word, ok := s.cpu.SafeReadInstruction(pc)
		if !ok {
			lines = append(lines, fmt.Sprintf("%08x: <unreadable>", pc))
			continue
		}
		lines = append(lines, s.cpu.FormatInstruction(word, pc))
	}
	return c.JSON(http.StatusOK, lines)
}

func (s *Server) getBreakpoints(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.cpu.GetBreakpointList(true, true)
	out := make([]BreakpointResponse, len(list))
	for i, bp := range list {
		out[i] = BreakpointResponse{
			Address:   bp.Address,
			Number:    bp.Number,
			HitCount:  bp.HitCount,
			AutoClear: bp.AutoClear,
			Enabled:   bp.Enabled,
			Condition: bp.Condition != nil,
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) addBreakpoint(c echo.Context) error {
	var req BreakpointRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	addr, err := parseAddress(req.Address)
	if err != nil {
		return err
	}
	enabled := req.Enabled == nil || *req.Enabled

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cpu.AddBreakpoint(addr, req.AutoClear, enabled) {
		return echo.NewHTTPError(http.StatusConflict, fmt.Sprintf("breakpoint at 0x%08X exists", addr))
	}
	return c.NoContent(http.StatusCreated)
}

func (s *Server) removeBreakpoint(c echo.Context) error {
	addr, err := parseAddress(c.Param("addr"))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cpu.RemoveBreakpoint(addr) {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no breakpoint at 0x%08X", addr))
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) clearBreakpoints(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cpu.ClearBreakpoints()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) step(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.cpu.SingleStep()
	resp := StepResponse{
		Retired:       r.Retired,
		PC:            r.PC,
		Ticks:         r.Ticks,
		Exception:     r.Exception,
		BreakpointHit: r.BreakpointHit,
	}
	if r.Exception {
		resp.Code = r.Code.String()
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) stepOver(c echo.Context) error {
	return s.runWithBreakpoint(c, s.cpu.AddStepOverBreakpoint, "step over")
}

func (s *Server) stepOut(c echo.Context) error {
	return s.runWithBreakpoint(c, func() bool {
		return s.cpu.AddStepOutBreakpoint(emu.DefaultStepOutSearchLimit)
	}, "step out")
}

func (s *Server) runWithBreakpoint(c echo.Context, add func() bool, what string) error {
	ticks, err := queryUint(c, "ticks", DefaultRunTicks)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !add() {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "cannot "+what+" here")
	}
	return c.JSON(http.StatusOK, s.runLocked(ticks))
}

func (s *Server) run(c echo.Context) error {
	ticks, err := queryUint(c, "ticks", DefaultRunTicks)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return c.JSON(http.StatusOK, s.runLocked(ticks))
}

func (s *Server) runLocked(ticks uint64) RunResponse {
	running := s.core.RunTicks(ticks)
	return RunResponse{
		PC:            s.cpu.State().PC,
		Running:       running,
		BreakpointHit: s.cpu.BreakpointHit(),
		Ticks:         s.core.Now(),
	}
}

func (s *Server) startTrace(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trace.Reset()
	s.cpu.SetTraceWriter(&s.trace)
	s.cpu.StartTrace()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) stopTrace(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cpu.StopTrace()
	return c.NoContent(http.StatusNoContent)
}

// getTrace returns and drains the buffered execution log.
func (s *Server) getTrace(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.trace.String()
	s.trace.Reset()
	return c.String(http.StatusOK, out)
}
