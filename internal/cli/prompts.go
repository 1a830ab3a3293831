package cli

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.-]+$`)

// validateTicker is the survey validator for ticker input.
func validateTicker(val any) error {
	str, ok := val.(string)
	if !ok {
		return fmt.Errorf("ticker must be text")
	}
	str = strings.TrimSpace(strings.ToUpper(str))
	if len(str) == 0 {
		return fmt.Errorf("ticker symbol cannot be empty")
	}
	if len(str) > 10 {
		return fmt.Errorf("ticker symbol too long (max 10 characters)")
	}
	if !tickerPattern.MatchString(str) {
		return fmt.Errorf("invalid ticker format (use letters, numbers, dots, and hyphens only)")
	}
	return nil
}

// PromptForTicker prompts the user to enter a stock ticker symbol
func PromptForTicker() (string, error) {
	var ticker string
	prompt := &survey.Input{
		Message: "Enter the stock ticker symbol (e.g., AAPL, MSFT, GOOGL):",
		Help:    "Please enter a valid stock ticker symbol for analysis",
	}
	if err := survey.AskOne(prompt, &ticker, survey.WithValidator(validateTicker)); err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.ToUpper(ticker)), nil
}

// PromptForRevisions asks how many times the memo may be revised.
func PromptForRevisions(current int) (int, error) {
	options := []string{"0", "1", "2", "3", "4", "5"}
	def := strconv.Itoa(current)
	if current < 0 || current > 5 {
		def = "2"
	}

	var choice string
	prompt := &survey.Select{
		Message: "Maximum revisions of the memo:",
		Help:    "The risk manager may send the memo back this many times before the last draft is final.",
		Options: options,
		Default: def,
	}
	if err := survey.AskOne(prompt, &choice); err != nil {
		return 0, err
	}
	return strconv.Atoi(choice)
}

// PromptForConfirmation shows the run settings and asks to proceed.
func PromptForConfirmation(ticker string, revisions int, model string) (bool, error) {
	var confirmed bool
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Research %s with up to %d revision(s) using %s?", ticker, revisions, model),
		Default: true,
	}
	err := survey.AskOne(prompt, &confirmed)
	return confirmed, err
}

// PromptForRestartOrExit prompts user when analysis completes
func PromptForRestartOrExit() (bool, error) {
	var choice string
	prompt := &survey.Select{
		Message: "Analysis completed! What would you like to do next?",
		Options: []string{
			"Start a new analysis",
			"Exit",
		},
		Default: "Exit",
	}
	if err := survey.AskOne(prompt, &choice); err != nil {
		return false, err
	}
	return choice == "Start a new analysis", nil
}
