package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kolkov/spreadcall/internal/spread/engine"
	"github.com/kolkov/spreadcall/internal/spread/realm"
)

var (
	traceCalls      int
	traceOverrideAt int
	traceThreshold  uint32
	traceShared     bool
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Run the own-iterator override workload and report transitions",
	Long: `Runs add(...[1, 2]) repeatedly at a single call site. From call
--override-at onward the spread array carries an own @@iterator that yields
3 and 4. Every change of result, path or bailout reason is printed.

With --shared one array is reused and mutated in place, so the instance
watchpoint retires the fast path as the override is written.`,
	RunE: runTrace,
}

func init() {
	traceCmd.Flags().IntVar(&traceCalls, "calls", 4000, "Number of calls")
	traceCmd.Flags().IntVar(&traceOverrideAt, "override-at", 1900, "First call with an own @@iterator (negative disables)")
	traceCmd.Flags().Uint32Var(&traceThreshold, "threshold", 1900, "Qualification threshold (0 uses config)")
	traceCmd.Flags().BoolVar(&traceShared, "shared", false, "Reuse and mutate one array")
}

// traceResult summarizes one trace run.
type traceResult struct {
	Stats      engine.Stats
	Mismatches int
}

func runTrace(cmd *cobra.Command, args []string) error {
	opts := engineOptions(cfg)
	if traceThreshold > 0 {
		opts.Threshold = traceThreshold
	}
	res, err := trace(cmd.OutOrStdout(), opts, traceCalls, traceOverrideAt, traceShared)
	if err != nil {
		return err
	}
	st := res.Stats
	fmt.Fprintf(cmd.OutOrStdout(), "\nexecutions=%d fast=%d general=%d bailouts=%d installs=%d retirements=%d poisoned=%d\n",
		st.Executions, st.FastCalls, st.GeneralCalls, st.Bailouts, st.Installs, st.Retirements, st.Poisoned)
	if res.Mismatches > 0 {
		return fmt.Errorf("%d calls returned an unexpected result", res.Mismatches)
	}
	return nil
}

func trace(w io.Writer, opts engine.Options, calls, overrideAt int, shared bool) (traceResult, error) {
	r := realm.New()
	e := engine.New(r, opts)
	defer e.Close()

	add := r.NewFunction("add", func(_ realm.Value, args []realm.Value) (realm.Value, error) {
		if len(args) < 2 {
			return nil, realm.NewTypeError("add needs two arguments")
		}
		a, _ := args[0].(float64)
		b, _ := args[1].(float64)
		return a + b, nil
	})
	values := r.ArrayPrototype().Get(realm.SymbolIterator)
	ownIterator := r.NewFunction("ownIterator", func(_ realm.Value, _ []realm.Value) (realm.Value, error) {
		return realm.Call(values, r.NewArray(3.0, 4.0), nil)
	})

	s := e.Site("trace")
	sharedArr := r.NewArray(1.0, 2.0)

	var (
		res      traceResult
		last     engine.CallResult
		haveLast bool
	)
	for i := 0; i < calls; i++ {
		arr := sharedArr
		if !shared {
			arr = r.NewArray(1.0, 2.0)
		}
		overridden := overrideAt >= 0 && i >= overrideAt
		if overridden && (!shared || i == overrideAt) {
			arr.Set(realm.SymbolIterator, ownIterator)
		}

		out, err := e.ExecuteExpansionCall(s, arr, add)
		if err != nil {
			return res, fmt.Errorf("call %d: %w", i, err)
		}

		want := 3.0
		if overridden {
			want = 7.0
		}
		if out.Value != want {
			res.Mismatches++
			logger.Warn("unexpected result",
				zap.Int("call", i),
				zap.Any("got", out.Value),
				zap.Float64("want", want))
		}

		if !haveLast || out.Value != last.Value || out.Path != last.Path || out.Bailout != last.Bailout {
			fmt.Fprintf(w, "call %5d: result=%s path=%s", i, realm.Format(out.Value), out.Path)
			if out.Bailout != 0 {
				fmt.Fprintf(w, " bailout=%q", out.Bailout)
			}
			fmt.Fprintf(w, " state=%s\n", e.State(s))
		}
		last, haveLast = out, true
	}

	if err := e.Close(); err != nil {
		return res, err
	}
	res.Stats = e.Stats()
	return res, nil
}
