package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/yaq-go/yaqd-rgb/pkg/log"
	"github.com/yaq-go/yaqd-rgb/pkg/qseries"
	"github.com/yaq-go/yaqd-rgb/pkg/wire"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Connections       map[string]*ConnectionStats
	Methods           map[string]*MethodStats
	DeviceCommands    map[uint32]int
	Daemons           map[string]int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	RemoteAddr string
	DaemonName string
}

// MethodStats aggregates the responses recorded for one message name.
type MethodStats struct {
	Requests  int
	Responses int
	Failures  int
	Total     time.Duration
	Max       time.Duration
	timed     int
}

// Mean returns the average processing time of timed responses.
func (m *MethodStats) Mean() time.Duration {
	if m.timed == 0 {
		return 0
	}
	return m.Total / time.Duration(m.timed)
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Connections:       make(map[string]*ConnectionStats),
		Methods:           make(map[string]*MethodStats),
		DeviceCommands:    make(map[uint32]int),
		Daemons:           make(map[string]int),
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	if event.DaemonName != "" {
		s.Daemons[event.DaemonName]++
	}

	if event.ConnectionID != "" {
		conn, ok := s.Connections[event.ConnectionID]
		if !ok {
			conn = &ConnectionStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
			}
			s.Connections[event.ConnectionID] = conn
		}
		conn.Events++
		if event.Timestamp.After(conn.LastSeen) {
			conn.LastSeen = event.Timestamp
		}
		if event.RemoteAddr != "" && conn.RemoteAddr == "" {
			conn.RemoteAddr = event.RemoteAddr
		}
		if event.DaemonName != "" && conn.DaemonName == "" {
			conn.DaemonName = event.DaemonName
		}
	}

	if msg := event.Message; msg != nil && msg.Method != "" {
		m, ok := s.Methods[msg.Method]
		if !ok {
			m = &MethodStats{}
			s.Methods[msg.Method] = m
		}
		switch msg.Type {
		case log.MessageTypeRequest:
			m.Requests++
		case log.MessageTypeResponse:
			m.Responses++
			if msg.Status != nil && *msg.Status != wire.StatusSuccess {
				m.Failures++
			}
			if msg.ProcessingTime != nil {
				m.timed++
				m.Total += *msg.ProcessingTime
				if *msg.ProcessingTime > m.Max {
					m.Max = *msg.ProcessingTime
				}
			}
		}
	}

	if event.Device != nil && event.Direction == log.DirectionOut {
		s.DeviceCommands[event.Device.Command]++
	}

	if event.Error != nil {
		s.Errors++
	}
}

// RunStats prints statistics about the selected events of the log at path.
func RunStats(path string, sel Selection, w io.Writer) error {
	stats := newStats()
	err := each(path, sel, func(e log.Event) error {
		stats.add(e)
		return nil
	})
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func newTable(w io.Writer, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(header)
	return tw
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== yaq Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		start, end := stats.TimeRange.Start, stats.TimeRange.End
		fmt.Fprintf(w, "Time Range: %s to %s\n", start.Format(time.RFC3339), end.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n\n", end.Sub(start).Round(time.Second))
	}
	fmt.Fprintf(w, "Total Events: %d\n\n", stats.TotalEvents)

	breakdown := newTable(w, table.Row{"By", "Value", "Events"})
	rows := countRows(breakdown, "layer", stats.EventsByLayer,
		log.LayerTransport, log.LayerWire, log.LayerService, log.LayerDevice)
	rows += countRows(breakdown, "category", stats.EventsByCategory,
		log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError, log.CategoryDevice)
	rows += countRows(breakdown, "direction", stats.EventsByDirection, log.DirectionIn, log.DirectionOut)

	for _, name := range sortedKeys(stats.Daemons) {
		breakdown.AppendRow(table.Row{"daemon", name, stats.Daemons[name]})
		rows++
	}
	if rows > 0 {
		breakdown.SetColumnConfigs([]table.ColumnConfig{{Number: 3, Align: text.AlignRight}})
		breakdown.Render()
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		tw := newTable(w, table.Row{"Connection", "Remote", "Daemon", "Events", "Duration"})
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			tw.AppendRow(table.Row{shortID(c.id), c.stats.RemoteAddr, c.stats.DaemonName, c.stats.Events, duration})
		}
		tw.SetColumnConfigs([]table.ColumnConfig{{Number: 4, Align: text.AlignRight}})
		tw.Render()
	}

	if len(stats.Methods) > 0 {
		names := sortedKeys(stats.Methods)

		fmt.Fprintln(w)
		fmt.Fprintln(w, "Messages:")
		tw := newTable(w, table.Row{"Method", "Requests", "Responses", "Failed", "Mean", "Max"})
		for _, name := range names {
			m := stats.Methods[name]
			tw.AppendRow(table.Row{name, m.Requests, m.Responses, m.Failures, formatDuration(m.Mean()), formatDuration(m.Max)})
		}
		tw.Render()
	}

	if len(stats.DeviceCommands) > 0 {
		codes := make([]uint32, 0, len(stats.DeviceCommands))
		for code := range stats.DeviceCommands {
			codes = append(codes, code)
		}
		sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

		fmt.Fprintln(w)
		fmt.Fprintln(w, "Device Commands:")
		tw := newTable(w, table.Row{"Command", "Code", "Sent"})
		for _, code := range codes {
			tw.AppendRow(table.Row{qseries.Command(code).String(), fmt.Sprintf("0x%04X", code), stats.DeviceCommands[code]})
		}
		tw.Render()
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}

// countRows appends a row for each key of order with a non-zero count and
// returns how many it added.
func countRows[K comparable](tw table.Writer, by string, counts map[K]int, order ...K) int {
	n := 0
	for _, k := range order {
		if c := counts[k]; c > 0 {
			tw.AppendRow(table.Row{by, fmt.Sprint(k), c})
			n++
		}
	}
	return n
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
