package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewReminderCmd создаёт группу команд для управления напоминаниями.
func NewReminderCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminder",
		Short: "Manage reminders",
	}

	cmd.AddCommand(
		newReminderListCmd(clientFn, outputFn),
		newReminderCreateCmd(clientFn, outputFn),
		newReminderShowCmd(clientFn, outputFn),
		newReminderUpdateCmd(clientFn, outputFn),
		newReminderAttemptsCmd(clientFn, outputFn),
		newReminderDeliverCmd(clientFn, outputFn),
	)

	return cmd
}

var reminderHeaders = []string{"ID", "CHANNEL", "TITLE", "SCHEDULED", "LEAD_SEC", "DELIVERED"}

func reminderRow(r *ReminderResponse) []string {
	return []string{
		r.ID,
		r.ChannelID,
		r.Title,
		r.ScheduledAt,
		strconv.FormatInt(r.LeadTimeSec, 10),
		strconv.FormatBool(r.Delivered),
	}
}

func newReminderListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var channelID string
	var pending string
	var limit int
	var offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			reminders, err := client.ListReminders(ListRemindersOpts{
				ChannelID: channelID,
				Pending:   pending,
				Limit:     limit,
				Offset:    offset,
			})
			if err != nil {
				return err
			}

			rows := make([][]string, len(reminders))
			for i := range reminders {
				rows[i] = reminderRow(&reminders[i])
			}

			out.Print(reminderHeaders, rows, reminders)
			return nil
		},
	}

	cmd.Flags().StringVar(&channelID, "channel", "", "Filter by channel ID")
	cmd.Flags().StringVar(&pending, "pending", "", "Filter by delivery state (true/false)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Results offset")

	return cmd
}

func newReminderCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var channelID string
	var title string
	var timeExpr string
	var leadSec int64

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new reminder",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			rem, err := client.CreateReminder(CreateReminderRequest{
				ChannelID:      channelID,
				Title:          title,
				TimeExpression: timeExpr,
				LeadTimeSec:    leadSec,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Reminder created: %s", rem.ID))
			out.Print(reminderHeaders, [][]string{reminderRow(rem)}, rem)
			return nil
		},
	}

	cmd.Flags().StringVar(&channelID, "channel", "", "Channel ID (required)")
	cmd.Flags().StringVar(&title, "title", "", "Reminder title (required)")
	cmd.Flags().StringVar(&timeExpr, "at", "", `Time expression, e.g. "in 2 hours" or "at 15:30" (required)`)
	cmd.Flags().Int64Var(&leadSec, "lead", 0, "Lead call advance in seconds")
	cmd.MarkFlagRequired("channel")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("at")

	return cmd
}

func newReminderShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show reminder details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			rem, err := client.GetReminder(args[0])
			if err != nil {
				return err
			}

			out.Print(reminderHeaders, [][]string{reminderRow(rem)}, rem)
			return nil
		},
	}
}

func newReminderUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var title string
	var timeExpr string
	var leadSec int64

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a pending reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateReminderRequest{}
			if cmd.Flags().Changed("title") {
				req.NewTitle = &title
			}
			if cmd.Flags().Changed("at") {
				req.NewTimeExpression = &timeExpr
			}
			if cmd.Flags().Changed("lead") {
				req.NewLeadTimeSec = &leadSec
			}

			rem, err := client.UpdateReminder(args[0], req)
			if err != nil {
				return err
			}

			out.Success("Reminder updated")
			out.Print(reminderHeaders, [][]string{reminderRow(rem)}, rem)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&timeExpr, "at", "", "New time expression")
	cmd.Flags().Int64Var(&leadSec, "lead", 0, "New lead call advance in seconds")

	return cmd
}

func newReminderAttemptsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "attempts ID",
		Short: "Show delivery attempt log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			attempts, err := client.ListAttempts(args[0])
			if err != nil {
				return err
			}

			headers := []string{"KIND", "OUTCOME", "ATTEMPTS", "ERROR", "CREATED"}
			rows := make([][]string, len(attempts))
			for i, a := range attempts {
				rows[i] = []string{a.Kind, a.Outcome, strconv.Itoa(a.Attempts), a.Error, a.CreatedAt}
			}

			out.Print(headers, rows, attempts)
			return nil
		},
	}
}

func newReminderDeliverCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "deliver ID",
		Short: "Trigger immediate delivery of a pending reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			rem, err := client.DeliverReminder(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Delivery submitted: %s", rem.ID))
			return nil
		},
	}
}
