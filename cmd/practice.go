package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/spigell/interviewer/internal/interview"
	"github.com/spigell/interviewer/internal/logger"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptAnswer  = "Answer the question"
	PromptSkip    = "Skip (submit an empty answer)"
	PromptAbandon = "Abandon the interview"
)

var errAbandoned = errors.New("interview abandoned")

var practiceCmd = &cobra.Command{
	Use:   "practice",
	Short: "Run an interview in the terminal",
	Run: func(cmd *cobra.Command, _ []string) {
		practice(cmd)
	},
}

func init() {
	rootCmd.AddCommand(practiceCmd)

	practiceCmd.Flags().IntP("steps", "n", 0, "number of questions, defaults to interview.total-steps")
	practiceCmd.Flags().String("title", "", "job title")
	practiceCmd.Flags().String("description", "", "job description")
	practiceCmd.Flags().String("requirements", "", "job requirements")
}

func practice(cmd *cobra.Command) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	app, err := buildApp(ctx, config, buildOptions{Storage: storageMemory, NoEvents: true}, logger)
	if err != nil {
		logger.Fatal("building application", zap.Error(err))
	}
	defer app.Close()

	job, err := askJob(cmd)
	if err != nil {
		logger.Fatal("reading job context", zap.Error(err))
	}

	steps, _ := cmd.Flags().GetInt("steps")

	report, err := runPractice(ctx, app.processor, job, steps, terminalCandidate{}, cmd.OutOrStdout())
	switch {
	case errors.Is(err, errAbandoned):
		logger.Info("exiting", zap.String("reason", "interview abandoned"))
		return
	case err != nil:
		logger.Fatal("running the interview", zap.Error(err))
	}

	printReport(cmd.OutOrStdout(), report)
}

// candidate answers interview questions. The terminal implementation prompts the user.
type candidate interface {
	Answer(q *interview.Question, totalSteps int) (string, error)
}

type terminalCandidate struct{}

func (terminalCandidate) Answer(q *interview.Question, totalSteps int) (string, error) {
	action := promptui.Select{
		Label: fmt.Sprintf("Question %d/%d [%s]: %s", q.Order, totalSteps, q.Difficulty, q.Text),
		Items: []string{PromptAnswer, PromptSkip, PromptAbandon},
	}

	_, choice, err := action.Run()
	if err != nil {
		return "", err
	}

	switch choice {
	case PromptAbandon:
		return "", errAbandoned
	case PromptSkip:
		return "", nil
	}

	answer := promptui.Prompt{Label: "Your answer"}
	return answer.Run()
}

func runPractice(ctx context.Context, svc *interview.Processor, job interview.Job, steps int, c candidate, out io.Writer) (*interview.Report, error) {
	session, q, err := svc.Start(ctx, job, steps)
	if err != nil {
		return nil, err
	}

	for q != nil {
		text, err := c.Answer(q, session.TotalSteps)
		if errors.Is(err, errAbandoned) {
			if _, abandonErr := svc.Abandon(ctx, session.ID); abandonErr != nil {
				return nil, abandonErr
			}
			return nil, err
		}
		if err != nil {
			return nil, err
		}

		// An empty answer is still an answer worth scoring.
		if strings.TrimSpace(text) == "" {
			text = "-"
		}

		res, err := svc.SubmitAnswer(ctx, session.ID, q.Order, interview.RawAnswer{Text: text})
		if err != nil {
			return nil, err
		}

		fmt.Fprintf(out, "Score: %.2f/10", res.Score)
		if res.Feedback != "" {
			fmt.Fprintf(out, " - %s", res.Feedback)
		}
		fmt.Fprintln(out)

		q = res.NextQuestion
	}

	return svc.Result(ctx, session.ID)
}

func askJob(cmd *cobra.Command) (interview.Job, error) {
	title, _ := cmd.Flags().GetString("title")
	description, _ := cmd.Flags().GetString("description")
	requirements, _ := cmd.Flags().GetString("requirements")

	job := interview.Job{Title: title, Description: description, Requirements: requirements}
	if !job.Empty() {
		return job, nil
	}

	fields := []struct {
		label string
		dst   *string
	}{
		{label: "Job title", dst: &job.Title},
		{label: "Job description", dst: &job.Description},
		{label: "Requirements", dst: &job.Requirements},
	}
	for _, f := range fields {
		p := promptui.Prompt{Label: f.label, Default: *f.dst}
		value, err := p.Run()
		if err != nil {
			return job, err
		}
		*f.dst = value
	}

	if job.Empty() {
		return job, errors.New("job description or requirements are required")
	}
	return job, nil
}

func printReport(out io.Writer, r *interview.Report) {
	fmt.Fprintf(out, "\nInterview complete: average %.2f/10, total %.2f over %d questions\n",
		r.AverageScore, r.TotalScore, r.TotalSteps)
	for _, q := range r.Questions {
		fmt.Fprintf(out, "%2d. [%s, %s] %s -> %s\n",
			q.Order, q.Difficulty, q.Origin, q.Question, strconv.FormatFloat(q.Score, 'f', 2, 64))
	}
}
