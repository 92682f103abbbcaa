package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/kbukum/smokedb/httpapi"
	"github.com/kbukum/smokedb/store"
)

func newInsertCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "insert <store> <file|->",
		Short: "Insert JSON objects from a file or stdin and print their keys",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readInput(cmd, args[1])
			if err != nil {
				return err
			}
			docs, err := httpapi.DecodeDocuments(body)
			if err != nil {
				return err
			}
			return opts.runTask(cmd, func(ctx context.Context, db *store.Database) error {
				records := make([]store.Record[httpapi.Document], len(docs))
				for i, doc := range docs {
					records[i] = store.Record[httpapi.Document]{Key: db.CreateKey(), Value: doc}
				}
				if err := store.NewCollection[httpapi.Document](db, args[0]).InsertRecords(records...).Submit(ctx); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, r := range records {
					fmt.Fprintln(out, r.Key)
				}
				return nil
			})
		},
	}
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}

// listFlags binds the listing flags shared by query and count.
type listFlags struct {
	where    []string
	order    string
	skip     int
	take     int
	distinct bool
}

func (f *listFlags) options() (httpapi.ListOptions, error) {
	o := httpapi.ListOptions{Skip: f.skip, Take: f.take, Distinct: f.distinct}
	for _, w := range f.where {
		cond, err := httpapi.ParseCondition(w)
		if err != nil {
			return o, err
		}
		o.Where = append(o.Where, cond)
	}
	if f.order != "" {
		if err := o.SetOrder(f.order); err != nil {
			return o, err
		}
	}
	if f.skip < 0 {
		return o, fmt.Errorf("--skip must not be negative")
	}
	return o, nil
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:   "query <store>",
		Short: "Print the records of a store as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lo, err := lf.options()
			if err != nil {
				return err
			}
			return opts.runTask(cmd, func(ctx context.Context, db *store.Database) error {
				enc := json.NewEncoder(cmd.OutOrStdout())
				var encErr error
				q := lo.Apply(store.NewCollection[httpapi.Document](db, args[0]).Query())
				err := q.Each(ctx, func(r store.Record[httpapi.Document], _ int) {
					if encErr == nil {
						encErr = enc.Encode(r)
					}
				})
				if err != nil {
					return err
				}
				return encErr
			})
		},
	}
	f := cmd.Flags()
	f.StringArrayVar(&lf.where, "where", nil, "field:value filter, repeatable")
	f.StringVar(&lf.order, "order", "", "sort by field, or -field for descending")
	f.IntVar(&lf.skip, "skip", 0, "records to skip")
	f.IntVar(&lf.take, "take", -1, "records to print, negative for all")
	f.BoolVar(&lf.distinct, "distinct", false, "drop records whose values repeat")
	return cmd
}

func newCountCmd(opts *rootOptions) *cobra.Command {
	var where []string
	cmd := &cobra.Command{
		Use:   "count <store>",
		Short: "Count the records of a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lo, err := (&listFlags{where: where}).options()
			if err != nil {
				return err
			}
			return opts.runTask(cmd, func(ctx context.Context, db *store.Database) error {
				coll := store.NewCollection[httpapi.Document](db, args[0])
				var n int
				var err error
				if len(lo.Where) == 0 {
					n, err = coll.Count(ctx)
				} else {
					n, err = lo.Filter(coll.Query()).Count(ctx)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&where, "where", nil, "field:value filter, repeatable")
	return cmd
}

func newStoresCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stores",
		Short: "List the object stores and the schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runTask(cmd, func(ctx context.Context, db *store.Database) error {
				stores, err := db.Stores(ctx)
				if err != nil {
					return err
				}
				version, err := db.Version(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "version %d\n", version)
				for _, name := range stores {
					fmt.Fprintln(out, name)
				}
				return nil
			})
		},
	}
}
