package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/evopolyfit/internal/server"
)

var (
	serverURL string
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	base := strings.TrimSuffix(serverURL, "/")
	if len(args) == 0 {
		return listJobs(cmd.OutOrStdout(), base)
	}
	return showJob(cmd.OutOrStdout(), base, args[0])
}

func getJSON(url string, v any) (int, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func listJobs(w io.Writer, base string) error {
	var jobs []server.Job
	if _, err := getJSON(base+"/api/v1/jobs", &jobs); err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB ID\tSTATE\tPOLYGONS\tEPOCH\tBEST FITNESS")
	for _, job := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.0f\n",
			job.ID, job.State, job.Request.Options.Polygons, job.Epoch, job.BestFitness)
	}
	tw.Flush()
	fmt.Fprintf(w, "\nFound %d job(s)\n", len(jobs))
	return nil
}

func showJob(w io.Writer, base, jobID string) error {
	var status server.JobStatus
	code, err := getJSON(base+"/api/v1/jobs/"+jobID+"/status", &status)
	if code == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return err
	}

	req := status.Request
	fmt.Fprintf(w, "Job: %s\n", status.ID)
	fmt.Fprintf(w, "State: %s\n\n", status.State)

	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  Reference: %s\n", req.RefPath)
	fmt.Fprintf(w, "  Polygons: %d x %d vertices\n", req.Options.Polygons, req.Options.Vertices)
	fmt.Fprintf(w, "  Population: %d\n", req.Options.PopulationSize)
	fmt.Fprintf(w, "  Epochs: %d\n", req.Options.Epochs)
	fmt.Fprintf(w, "  Operators: %s / %s / %s / %s\n",
		req.Options.Selection, req.Options.Crossover, strings.Join(req.Options.Mutations, ","), req.Options.Replacement)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Progress:")
	fmt.Fprintf(w, "  Epoch: %d\n", status.Epoch)
	fmt.Fprintf(w, "  Initial Fitness: %.0f\n", status.InitialFitness)
	fmt.Fprintf(w, "  Best Fitness: %.0f\n", status.BestFitness)
	if status.InitialFitness < 0 {
		improvement := status.BestFitness - status.InitialFitness
		fmt.Fprintf(w, "  Improvement: %.0f (%.1f%%)\n", improvement, improvement/-status.InitialFitness*100)
	}
	elapsed := time.Duration(status.ElapsedSeconds * float64(time.Second))
	fmt.Fprintf(w, "  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	if status.EvaluationsPerSecond > 0 {
		fmt.Fprintf(w, "  Throughput: %.0f evaluations/sec\n", status.EvaluationsPerSecond)
	}
	if status.Error != "" {
		fmt.Fprintf(w, "\nError: %s\n", status.Error)
	}
	return nil
}
