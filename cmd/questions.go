package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/leep66666/smart-job-assistant-backend/internal/interview/questions"
	"github.com/leep66666/smart-job-assistant-backend/internal/logger"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var savePrompt = promptui.Select{
	Label: "Save the questions to a file?",
	Items: []string{PromptYes, PromptNo},
}

var questionsCmd = &cobra.Command{
	Use:   "questions [job-description-file]",
	Short: "Generate interview questions from a job description without starting the server",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		generateQuestions(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(questionsCmd)

	questionsCmd.Flags().StringP("output", "o", "questions.json", "file the questions are saved to on confirmation")
	questionsCmd.Flags().BoolP("auto-approve", "y", false, "save without asking for confirmation")
}

func generateQuestions(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	jobDescription := ""
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			logger.Fatal("reading job description file", zap.Error(err))
		}
		jobDescription = string(data)
	}

	generator := prepareGenerator(ctx, config.AI, logger)
	source := questions.NewSource(generator, config.Interview.QuestionDurationSeconds, logger)

	list, warnings := source.Generate(ctx, jobDescription)
	for _, warning := range warnings {
		logger.Warn("question generation", zap.String("warning", warning))
	}

	for _, q := range list {
		fmt.Printf("%s (%ds): %s\n", q.ID, q.DurationSeconds, q.Text)
	}

	if cmd.Flag("auto-approve").Value.String() == "false" {
		_, action, err := savePrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if action != PromptYes {
			return
		}
	}

	output := cmd.Flag("output").Value.String()
	pretty, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		logger.Fatal("encoding questions", zap.Error(err))
	}
	if err := os.WriteFile(output, pretty, 0o644); err != nil {
		logger.Fatal("writing questions file", zap.Error(err))
	}

	logger.Info("questions saved", zap.String("filename", output), zap.Int("count", len(list)))
}
