package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/medkb/kbgen/internal/article"
	"github.com/medkb/kbgen/internal/config"
	"github.com/medkb/kbgen/internal/local"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration, catalog, and existing articles",
	Long: `Validate the pipeline setup without calling any external service:
the configuration file parses, the catalog loads, the relevance index (if
configured) parses, and every existing article passes integrity checks.`,
	RunE: runCheck,
}

// CheckResult is the response for the check command.
type CheckResult struct {
	Status     string       `json:"status"`
	Conditions int          `json:"conditions"`
	Articles   int          `json:"articles"`
	Issues     []CheckIssue `json:"issues,omitempty"`
}

// CheckIssue is a single problem found during check.
type CheckIssue struct {
	Type      string `json:"type"`
	Condition string `json:"condition,omitempty"`
	Reason    string `json:"reason"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return failf(ExitConfigError, "%v", err)
	}

	result := CheckResult{Status: "ok"}

	conditions, err := loadConditions(cfg)
	if err != nil {
		return failf(ExitDataError, "%v", err)
	}
	result.Conditions = len(conditions)

	if _, err := local.LoadIndex(cfg.RelevancePath); err != nil {
		result.Issues = append(result.Issues, CheckIssue{
			Type:   "relevance_index",
			Reason: err.Error(),
		})
	}

	for _, cond := range conditions {
		data, err := os.ReadFile(cfg.ArticlePath(cond.Slug()))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			result.Issues = append(result.Issues, CheckIssue{
				Type: "article_unreadable", Condition: cond.Name, Reason: err.Error(),
			})
			continue
		}

		var a article.Article
		if err := json.Unmarshal(data, &a); err != nil {
			result.Issues = append(result.Issues, CheckIssue{
				Type: "article_malformed", Condition: cond.Name, Reason: err.Error(),
			})
			continue
		}
		if err := article.Validate(&a); err != nil {
			result.Issues = append(result.Issues, CheckIssue{
				Type: "article_invalid", Condition: cond.Name, Reason: err.Error(),
			})
			continue
		}
		result.Articles++
	}

	if len(result.Issues) > 0 {
		result.Status = "issues"
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if len(result.Issues) > 0 {
		return failf(ExitDataError, "check found %d issues", len(result.Issues))
	}
	return nil
}
