// Command hivemapctl is a local, single-writer client for a hive: it opens
// a pebble-backed blob store and a partialmap.Map rooted there, applies one
// operation, and persists the result before exiting. There is no ordering
// service behind it, so every invocation runs the map detached and folds
// its own write straight into the tree rather than leaving it queued for a
// leader to compact later.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jenn-le/hivemap/blobstore"
	"github.com/jenn-le/hivemap/partialmap"
)

// stringCodec treats values as raw UTF-8 text, the only value type this CLI
// knows how to print.
type stringCodec struct{}

func (stringCodec) Encode(v string) ([]byte, error) { return []byte(v), nil }
func (stringCodec) Decode(b []byte) (string, error) { return string(b), nil }

// localHost is the Host a single local process presents to its Map: it is
// never attached, so every mutation lands directly in SequencedState rather
// than going out for sequencing (spec.md §4.4 Writes, detached branch).
type localHost struct{ seq int64 }

func (h *localHost) SubmitLocalMessage(context.Context, partialmap.Op) error { return nil }
func (h *localHost) LastSequenceNumber() int64                              { return h.seq }
func (h *localHost) IsAttached() bool                                       { return false }
func (h *localHost) LeaderSignal() <-chan partialmap.LeaderState            { return nil }

func main() {
	var dataDir string
	var order, cacheSizeHint, flushThreshold int

	root := &cobra.Command{
		Use:   "hivemapctl",
		Short: "Inspect and mutate a hive's local blob store directly.",
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory holding the pebble-backed blob store.")
	root.PersistentFlags().IntVar(&order, "order", partialmap.DefaultConfig().Order, "B-tree fan-out bound, only honored on first creation.")
	root.PersistentFlags().IntVar(&cacheSizeHint, "cache-size-hint", partialmap.DefaultConfig().CacheSizeHint, "Working-set size that triggers eviction.")
	root.PersistentFlags().IntVar(&flushThreshold, "flush-threshold", partialmap.DefaultConfig().FlushThreshold, "Unused by this CLI (every write compacts immediately), kept for config parity.")

	openMap := func() (*partialmap.Map[string], *blobstore.Pebble, error) {
		if dataDir == "" {
			return nil, nil, fmt.Errorf("--data-dir is required")
		}
		store, err := blobstore.NewPebble(dataDir)
		if err != nil {
			return nil, nil, err
		}
		cfg := partialmap.Config{Order: order, CacheSizeHint: cacheSizeHint, FlushThreshold: flushThreshold}
		m, err := partialmap.Load[string](context.Background(), cfg, store, &localHost{}, stringCodec{})
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		return m, store, nil
	}

	root.AddCommand(attachCmd(openMap))
	root.AddCommand(getCmd(openMap))
	root.AddCommand(setCmd(openMap))
	root.AddCommand(deleteCmd(openMap))
	root.AddCommand(clearCmd(openMap))
	root.AddCommand(flushCmd(openMap))
	root.AddCommand(summaryCmd(openMap))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type opener func() (*partialmap.Map[string], *blobstore.Pebble, error)

func attachCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "attach",
		Short: "Create the hive's summary blob if it does not exist yet, then print it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := m.PersistSummary(cmd.Context()); err != nil {
				return err
			}
			return printSummary(m)
		},
	}
}

func getCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Args:  cobra.ExactArgs(1),
		Short: "Print the value stored at key.",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()
			v, ok, err := m.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("key %q not found", args[0])
			}
			fmt.Println(v)
			return nil
		},
	}
}

func setCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "set [key] [value]",
		Args:  cobra.ExactArgs(2),
		Short: "Set key to value and compact it into the tree.",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := m.Set(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return compactAndPersist(cmd, m)
		},
	}
}

func deleteCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [key]",
		Args:  cobra.ExactArgs(1),
		Short: "Delete key and compact the tree.",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := m.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			return compactAndPersist(cmd, m)
		},
	}
}

func clearCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the hive.",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := m.Clear(cmd.Context()); err != nil {
				return err
			}
			return compactAndPersist(cmd, m)
		},
	}
}

func flushCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Force a compaction pass even if nothing changed, then print the summary.",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()
			return compactAndPersist(cmd, m)
		},
	}
}

func summaryCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the hive's current persisted summary without compacting.",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()
			return printSummary(m)
		},
	}
}

func compactAndPersist(cmd *cobra.Command, m *partialmap.Map[string]) error {
	if err := m.Compact(cmd.Context()); err != nil {
		return err
	}
	if err := m.PersistSummary(cmd.Context()); err != nil {
		return err
	}
	return printSummary(m)
}

func printSummary(m *partialmap.Map[string]) error {
	bytes, err := json.MarshalIndent(m.Summarize(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(bytes))
	return nil
}
