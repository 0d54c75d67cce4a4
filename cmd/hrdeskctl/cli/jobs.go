package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/hrdesk/hrdesk/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	if redisAddr == "" {
		return nil, errors.New("jobs cli: redis address required")
	}
	opt := asynq.RedisClientOpt{Addr: redisAddr}
	return &JobsCLI{client: asynq.NewClient(opt), inspector: asynq.NewInspector(opt)}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// TriggerOptions carries job specific parameters for Trigger.
type TriggerOptions struct {
	// Retention bounds idempotency:cleanup; zero means the default.
	Retention time.Duration
	// Email fields are used by mail:send.
	Email jobs.SendEmailPayload
}

// BuildTask maps a job name to a task with its payload.
func BuildTask(name string, opts TriggerOptions) (*asynq.Task, error) {
	switch name {
	case jobs.TaskIdempotencyCleanup:
		retention := opts.Retention
		if retention <= 0 {
			retention = jobs.DefaultIdempotencyRetention
		}
		return jobs.NewIdempotencyCleanupTask(retention)
	case jobs.TaskTypeSendEmail:
		if opts.Email.To == "" {
			return nil, errors.New("jobs cli: mail:send requires a recipient")
		}
		payload := opts.Email
		if payload.Subject == "" {
			payload.Subject = "hrdesk test message"
		}
		if payload.Body == "" {
			payload.Body = "This message was queued by hrdeskctl to verify mail delivery."
		}
		return jobs.NewSendEmailTask(payload)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, opts TriggerOptions) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	task, err := BuildTask(name, opts)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue" yaml:"queue"`
	Pending   int    `json:"pending" yaml:"pending"`
	Active    int    `json:"active" yaml:"active"`
	Scheduled int    `json:"scheduled" yaml:"scheduled"`
	Retry     int    `json:"retry" yaml:"retry"`
	Archived  int    `json:"archived" yaml:"archived"`
}

// InspectQueue reports the queue metrics for the default queue. A queue
// that has never received a task reports zero counts.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return stats, nil
	}
	if err != nil {
		return QueueStats{}, err
	}
	if info != nil {
		stats.Pending = int(info.Pending)
		stats.Active = int(info.Active)
		stats.Scheduled = int(info.Scheduled)
		stats.Retry = int(info.Retry)
		stats.Archived = int(info.Archived)
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

func newJobsCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}
	cmd.AddCommand(newJobsTriggerCommand(opts), newJobsStatsCommand(opts), newJobsScheduledCommand(opts))
	return cmd
}

func (o *globalOptions) jobsCLI() (*JobsCLI, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return NewJobsCLI(cfg.RedisAddr)
}

func newJobsTriggerCommand(opts *globalOptions) *cobra.Command {
	var topts TriggerOptions
	cmd := &cobra.Command{
		Use:   "trigger <job>",
		Short: "Enqueue a job immediately",
		Long: `Enqueue one of the supported jobs on the default queue.

Jobs:
  idempotency:cleanup   purge stored idempotency keys older than --retention
  mail:send             send a test message to --to

Examples:
  hrdeskctl jobs trigger idempotency:cleanup --retention 72h
  hrdeskctl jobs trigger mail:send --to ops@example.com`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.TaskIdempotencyCleanup, jobs.TaskTypeSendEmail},
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := BuildTask(args[0], topts); err != nil {
				return err
			}
			cli, err := opts.jobsCLI()
			if err != nil {
				return err
			}
			defer cli.Close()

			info, err := cli.Trigger(cmd.Context(), args[0], topts)
			if err != nil {
				return err
			}
			view := map[string]string{"id": info.ID, "type": info.Type, "queue": info.Queue}
			if done, err := opts.structured(cmd.OutOrStdout(), view); done {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
	cmd.Flags().DurationVar(&topts.Retention, "retention", jobs.DefaultIdempotencyRetention, "idempotency key retention")
	cmd.Flags().StringVar(&topts.Email.To, "to", "", "mail recipient")
	cmd.Flags().StringVar(&topts.Email.Subject, "subject", "", "mail subject")
	cmd.Flags().StringVar(&topts.Email.Body, "body", "", "mail body")
	return cmd
}

func newJobsStatsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show default queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opts.jobsCLI()
			if err != nil {
				return err
			}
			defer cli.Close()

			stats, err := cli.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			if done, err := opts.structured(cmd.OutOrStdout(), stats); done {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED")
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n", stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
			return w.Flush()
		},
	}
}

type scheduledView struct {
	ID        string    `json:"id" yaml:"id"`
	Type      string    `json:"type" yaml:"type"`
	NextRunAt time.Time `json:"next_run_at" yaml:"next_run_at"`
	Retried   int       `json:"retried" yaml:"retried"`
}

func newJobsScheduledCommand(opts *globalOptions) *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "scheduled",
		Short: "List tasks scheduled for later processing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opts.jobsCLI()
			if err != nil {
				return err
			}
			defer cli.Close()

			infos, err := cli.ListScheduled(cmd.Context(), size)
			if err != nil {
				return err
			}
			out := make([]scheduledView, 0, len(infos))
			for _, info := range infos {
				out = append(out, scheduledView{ID: info.ID, Type: info.Type, NextRunAt: info.NextProcessAt, Retried: info.Retried})
			}
			if done, err := opts.structured(cmd.OutOrStdout(), out); done {
				return err
			}
			if len(out) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No scheduled tasks.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tNEXT RUN\tRETRIED")
			for _, v := range out {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", v.ID, v.Type, v.NextRunAt.Format(time.RFC3339), v.Retried)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&size, "limit", 10, "maximum tasks to list")
	return cmd
}
