package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/veldt-lang/veldt/analysis"
	"github.com/veldt-lang/veldt/internal/log"
	"github.com/veldt-lang/veldt/ir"
	"github.com/veldt-lang/veldt/middle"
	"github.com/veldt-lang/veldt/middle/normerr"
	"github.com/veldt-lang/veldt/util"
)

var NormalizeCmd = &cobra.Command{
	Use:          "normalize snapshot.json",
	Short:        "Run the middle-end normalization pass on an analysis snapshot",
	RunE:         runNormalize,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var (
	normalizeOutPath *string
	logLevel         *int
	mixedArrays      *bool
	devirtualize     *bool
	eraseRefs        *bool
	maxParamSlots    *int
	maxReturnSlots   *int
	maxFlatSlots     *int
)

func init() {
	normalizeOutPath = NormalizeCmd.Flags().StringP("out", "o", "", "write the module summary to a file instead of stdout")
	logLevel = NormalizeCmd.Flags().IntP("log-level", "l", int(slog.LevelError), "log level")
	mixedArrays = NormalizeCmd.Flags().Bool("mixed-arrays", false, "keep multi-slot array elements together instead of splitting columns")
	devirtualize = NormalizeCmd.Flags().Bool("devirtualize", true, "skip dispatch tables with fewer than two distinct entries")
	eraseRefs = NormalizeCmd.Flags().Bool("erase-overflow-refs", false, "erase reference types before overflow slot lookup")
	maxParamSlots = NormalizeCmd.Flags().Int("max-param-slots", 8, "positional parameter slots before spilling")
	maxReturnSlots = NormalizeCmd.Flags().Int("max-return-slots", 2, "positional return slots before spilling")
	maxFlatSlots = NormalizeCmd.Flags().Int("max-flat-slots", 16, "variant flattening budget in scalar slots")
}

func runNormalize(cmd *cobra.Command, args []string) error {
	log.SetLevel(slog.Level(*logLevel))

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("could not open snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()

	mod, err := analysis.LoadSnapshot(f)
	if err != nil {
		return fmt.Errorf("could not load snapshot: %w", err)
	}

	cfg := analysis.DefaultConfig()
	cfg.MaxParamSlots = *maxParamSlots
	cfg.MaxReturnSlots = *maxReturnSlots
	cfg.MaxFlatSlots = *maxFlatSlots
	cfg.Devirtualize = *devirtualize
	cfg.EraseOverflowRefs = *eraseRefs
	if *mixedArrays {
		cfg.Arrays = analysis.LayoutMixed
	}

	normalized, err := middle.Run(mod, cfg)
	if err != nil {
		var normErr normerr.NormError
		if !errors.As(err, &normErr) {
			normErr = normerr.New(normerr.Unclassified{From: err})
		}
		return fmt.Errorf("normalization failed: %s", normerr.FormatWithCode(normErr))
	}

	summary := summarize(mod, normalized)
	out := os.Stdout
	if *normalizeOutPath != "" {
		out, err = os.Create(*normalizeOutPath)
		if err != nil {
			return fmt.Errorf("could not create output file: %w", err)
		}
		defer func() { _ = out.Close() }()
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

type moduleSummary struct {
	Name     string         `json:"name"`
	Classes  []classSummary `json:"classes"`
	Types    int            `json:"types"`
	Tables   int            `json:"tables"`
	Methods  int            `json:"methods"`
	Records  int            `json:"records"`
	Overflow int            `json:"overflowSlots"`
}

type classSummary struct {
	Name      string   `json:"name"`
	Ancestors []string `json:"ancestors,omitempty"`
	MinID     int      `json:"minId"`
	MaxID     int      `json:"maxId"`
	Fields    int      `json:"fields"`
	Slots     int      `json:"vtableSlots"`
}

func summarize(mod *analysis.Module, m *ir.Module) moduleSummary {
	s := moduleSummary{
		Name:    m.Name,
		Types:   len(m.Types),
		Tables:  len(m.Tables),
		Methods: len(m.Methods),
		Records: len(m.Records),
	}
	if m.Overflow != nil {
		s.Overflow = len(m.Overflow.Fields)
	}
	for _, c := range m.Classes {
		cs := classSummary{Name: c.Name, MinID: c.MinID, MaxID: c.MaxID, Fields: len(c.Fields)}
		for name := range util.SetIterator(mod.AncestorNames(c.Source)) {
			cs.Ancestors = append(cs.Ancestors, name)
		}
		sort.Strings(cs.Ancestors)
		if c.VTable != nil {
			cs.Slots = len(c.VTable.Slots)
		}
		s.Classes = append(s.Classes, cs)
	}
	return s
}
