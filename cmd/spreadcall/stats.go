package main

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kolkov/spreadcall/internal/spread/engine"
	"github.com/kolkov/spreadcall/internal/spread/realm"
)

var (
	statsSites     int
	statsCalls     int
	statsHoleEvery int
	statsPoison    bool
	statsSeed      int64
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Run a multi-site workload and print engine counters as YAML",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsSites, "sites", 4, "Number of call sites")
	statsCmd.Flags().IntVar(&statsCalls, "calls", 1000, "Calls per site")
	statsCmd.Flags().IntVar(&statsHoleEvery, "hole-every", 0, "Spread a holey array every N calls (0 disables)")
	statsCmd.Flags().BoolVar(&statsPoison, "poison", false, "Replace Array.prototype[@@iterator] halfway through")
	statsCmd.Flags().Int64Var(&statsSeed, "seed", 1, "Seed for array lengths")
}

// siteReport is one call site's row in the stats report.
type siteReport struct {
	ID         string `yaml:"id"`
	State      string `yaml:"state"`
	Executions uint64 `yaml:"executions"`
	Installs   uint64 `yaml:"installs"`
	Demotions  uint64 `yaml:"demotions"`
}

// statsReport is the document printed by the stats command.
type statsReport struct {
	Threshold uint32       `yaml:"threshold"`
	Engine    engine.Stats `yaml:"engine"`
	Sites     []siteReport `yaml:"sites"`
}

func runStats(cmd *cobra.Command, args []string) error {
	rep, err := workload(engineOptions(cfg), statsSites, statsCalls, statsHoleEvery, statsPoison, statsSeed)
	if err != nil {
		return err
	}
	return writeReport(cmd.OutOrStdout(), rep)
}

func writeReport(w io.Writer, rep statsReport) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

func workload(opts engine.Options, sites, calls, holeEvery int, poison bool, seed int64) (statsReport, error) {
	r := realm.New()
	e := engine.New(r, opts)
	defer e.Close()

	rng := rand.New(rand.NewSource(seed))
	count := r.NewFunction("count", func(_ realm.Value, args []realm.Value) (realm.Value, error) {
		return float64(len(args)), nil
	})

	for i := 0; i < calls; i++ {
		if poison && i == calls/2 {
			values := r.ArrayPrototype().Get(realm.SymbolIterator)
			r.ArrayPrototype().Set(realm.SymbolIterator, r.NewFunction("values", func(this realm.Value, _ []realm.Value) (realm.Value, error) {
				return realm.Call(values, this, nil)
			}))
		}
		for j := 0; j < sites; j++ {
			n := 1 + rng.Intn(8)
			elems := make([]realm.Value, n)
			for k := range elems {
				elems[k] = float64(k)
			}
			arr := r.NewArray(elems...)
			if holeEvery > 0 && i%holeEvery == holeEvery-1 {
				arr.DeleteElement(0)
			}

			out, err := e.ExecuteExpansionCall(e.Site(fmt.Sprintf("site-%d", j)), arr, count)
			if err != nil {
				return statsReport{}, err
			}
			if out.Value != float64(n) {
				return statsReport{}, fmt.Errorf("site-%d call %d: got %s arguments, want %d", j, i, realm.Format(out.Value), n)
			}
		}
	}

	if err := e.Close(); err != nil {
		return statsReport{}, err
	}
	rep := statsReport{Threshold: e.Threshold(), Engine: e.Stats()}
	for _, s := range e.Sites() {
		rep.Sites = append(rep.Sites, siteReport{
			ID:         s.ID,
			State:      e.State(s).String(),
			Executions: s.ExecutionCount(),
			Installs:   s.Installs(),
			Demotions:  s.Demotions(),
		})
	}
	return rep, nil
}
