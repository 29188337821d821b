package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/scheme-matcher/internal/filtering"
	"github.com/spigell/scheme-matcher/internal/recommend"
	"github.com/spigell/scheme-matcher/internal/welfare"
)

const (
	PromptReportByLocation    = "Report by location"
	PromptExplain             = "Explain rejected schemes"
	PromptFilters             = "Show filters"
	PromptSchemesToFile       = "Dump schemes to file"
	PromptAppendToExcludeFile = "Append all schemes to exclude file"
	PromptExit                = "Exit"
	PromptBack                = "back"
)

var errExit = errors.New("exit requested")

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend schemes for a registered citizen",
	Run: func(cmd *cobra.Command, _ []string) {
		runRecommend(cmd)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().StringP("email", "m", "", "email of the registered user")
	recommendCmd.Flags().BoolP("yes", "y", false, "print the result as json and exit without prompting")
	recommendCmd.Flags().StringP("exclude-file", "e", "", "file with schemes to exclude. Default is unset.")
	recommendCmd.MarkFlagRequired("email")

	viper.BindPFlag("recommend.exclude-file", recommendCmd.Flags().Lookup("exclude-file"))
}

// result is the machine readable output of the recommend command.
type result struct {
	Email       string                           `json:"email"`
	SchemeIDs   []string                         `json:"eligible_scheme_ids"`
	Rejections  map[string]filtering.Rejection   `json:"rejections"`
	Assessments map[string]*filtering.Assessment `json:"assessments,omitempty"`
	Filters     []filtering.Status               `json:"filters"`
}

func runRecommend(cmd *cobra.Command) {
	ctx := context.Background()

	logger := newLogger()
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	email, _ := cmd.Flags().GetString("email")

	d, err := buildDeps(ctx, config, logger)
	if err != nil {
		logger.Fatal("building dependencies", zap.Error(err))
	}
	defer d.close(logger)

	rec, err := d.recommender.Recommend(ctx, email)
	if err != nil {
		logger.Fatal("recommendation failed", zap.Error(err))
	}

	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		if err := printJSON(newResult(email, rec)); err != nil {
			logger.Fatal("printing result", zap.Error(err))
		}
		return
	}

	logger.Info("recommended schemes", zap.Int("count", rec.Schemes.Len()), zap.Strings("ids", rec.IDs()))

	prompt := promptui.Select{
		Label: "What next?",
		Items: []string{PromptReportByLocation, PromptExplain, PromptFilters, PromptSchemesToFile, PromptAppendToExcludeFile, PromptExit},
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, rec, config.Recommend.ExcludeFile, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, rec *recommend.Recommendation, excludeFile string, logger *zap.Logger) error {
	switch action {
	case PromptReportByLocation:
		pretty, _ := json.MarshalIndent(rec.Schemes.ReportByLocation(), "", "  ")
		logger.Info(string(pretty), zap.Int("schemes count", rec.Schemes.Len()))
		return nil
	case PromptExplain:
		return explain(rec, logger)
	case PromptFilters:
		pretty, _ := json.MarshalIndent(rec.Filters, "", "  ")
		logger.Info(string(pretty))
		return nil
	case PromptSchemesToFile:
		filename, err := rec.Schemes.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptAppendToExcludeFile:
		return appendToExcludeFile(rec.Schemes, excludeFile, logger)
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func explain(rec *recommend.Recommendation, logger *zap.Logger) error {
	ids := make([]string, 0, len(rec.Rejections))
	for id := range rec.Rejections {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		logger.Info("no schemes were rejected")
		return nil
	}
	slices.Sort(ids)

	items := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		r := rec.Rejections[id]
		items = append(items, fmt.Sprintf("%s / %s / %s", id, r.Filter, r.Reason))
	}

	schemePrompt := promptui.Select{
		Label: "Choose a scheme and press ENTER",
		Items: append(items, PromptBack),
	}

	for {
		_, selected, err := schemePrompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptBack {
			return nil
		}

		id := strings.Split(selected, " ")[0]
		rejection, _ := rec.Explain(id)
		logger.Info("scheme rejected",
			zap.String("scheme_id", id),
			zap.String("filter", rejection.Filter),
			zap.String("criterion", rejection.Criterion),
			zap.String("reason", rejection.Reason),
		)
	}
}

func appendToExcludeFile(schemes *welfare.Schemes, excludeFile string, logger *zap.Logger) error {
	if excludeFile == "" {
		return errors.New("exclude file is not configured (use --exclude-file or recommend.exclude-file)")
	}

	excluded := &welfare.Schemes{}
	if _, err := os.Stat(excludeFile); err == nil {
		if excluded, err = welfare.LoadSchemesFile(excludeFile); err != nil {
			return err
		}
	}

	known := excluded.IDs()
	for _, scheme := range schemes.Items {
		if !slices.Contains(known, scheme.ID) {
			excluded.Items = append(excluded.Items, scheme)
		}
	}

	if err := excluded.ToFile(excludeFile); err != nil {
		return err
	}

	logger.Info("appended to exclude file", zap.String("filename", excludeFile), zap.Int("count", excluded.Len()))
	return nil
}

func newResult(email string, rec *recommend.Recommendation) *result {
	ids := rec.IDs()
	if ids == nil {
		ids = []string{}
	}
	return &result{
		Email:       email,
		SchemeIDs:   ids,
		Rejections:  rec.Rejections,
		Assessments: rec.Assessments,
		Filters:     rec.Filters,
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
