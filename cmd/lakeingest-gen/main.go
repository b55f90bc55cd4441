// Command lakeingest-gen writes a sample CSV file for trying out lakeingest.
package main

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/arkilian/lakeingest/internal/config"
)

var departments = []string{"Engineering", "Sales", "Marketing", "HR"}

var header = []string{"id", "name", "age", "salary", "department", "is_active", "created_at"}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		output string
		rows   int
		seed   int64
	)

	cmd := &cobra.Command{
		Use:          "lakeingest-gen",
		Short:        "Generate a sample CSV file",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rows < 0 {
				return fmt.Errorf("rows must not be negative, got %d", rows)
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			bw := bufio.NewWriter(f)
			if err := generate(bw, rows, rand.New(rand.NewSource(seed)), time.Now()); err != nil {
				f.Close()
				return err
			}
			if err := bw.Flush(); err != nil {
				f.Close()
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to close %s: %w", output, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %s with %d rows\n", output, rows)
			fmt.Fprintf(out, "\nIngest it with:\n  lakeingest ingest %s --workers %d --chunk-size %d\n",
				output, config.DefaultWorkers, config.DefaultChunkSize)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "sample_data.csv", "output file")
	cmd.Flags().IntVarP(&rows, "rows", "n", 50000, "number of rows")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed")
	return cmd
}

// generate writes the header and n rows. Output is deterministic for a given
// rng state and now.
func generate(w io.Writer, n int, rng *rand.Rand, now time.Time) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(header))
	for i := 1; i <= n; i++ {
		salary := math.Round((rng.NormFloat64()*15000+50000)*100) / 100
		created := now.Add(-time.Duration(rng.Intn(365)) * 24 * time.Hour)

		record[0] = strconv.Itoa(i)
		record[1] = "user_" + strconv.Itoa(i)
		record[2] = strconv.Itoa(18 + rng.Intn(62))
		record[3] = strconv.FormatFloat(salary, 'f', 2, 64)
		record[4] = departments[rng.Intn(len(departments))]
		record[5] = strconv.FormatBool(rng.Float64() < 0.8)
		record[6] = created.Format("2006-01-02 15:04:05.000000")

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
