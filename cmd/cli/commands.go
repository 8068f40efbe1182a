package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	opponentID    string
	userID        string
	limit         int
	offset        int
	week          string
	reason        string
	details       string
	reporterID    string
	targetType    string
	playerImage   string
	opponentImage string
)

func init() {
	battleCmd.Flags().StringVar(&opponentID, "opponent", "", "Opponent character id; sampled when empty")
	battleCmd.Flags().StringVar(&playerImage, "player-image", "", "Override the player's drawing reference")
	battleCmd.Flags().StringVar(&opponentImage, "opponent-image", "", "Override the opponent's drawing reference")

	matchCmd.Flags().StringVar(&userID, "user", "", "Owner of the character")

	rankingsCmd.Flags().IntVar(&limit, "limit", 20, "Number of characters")
	rankingsCmd.Flags().IntVar(&offset, "offset", 0, "Number of characters to skip")
	weeklyCmd.Flags().IntVar(&limit, "limit", 20, "Number of characters")

	reportCmd.Flags().StringVar(&targetType, "type", "character", "Target type: character, battle or user")
	reportCmd.Flags().StringVar(&reason, "reason", "", "Why the target is reported")
	reportCmd.Flags().StringVar(&details, "details", "", "Optional details")
	reportCmd.Flags().StringVar(&reporterID, "reporter", "", "Reporter user id; anonymous when empty")
	reportCmd.MarkFlagRequired("reason")

	announceCmd.Flags().StringVar(&week, "week", "", "ISO week key, e.g. 2024-W11; current week when empty")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(battleCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(rankingsCmd)
	rootCmd.AddCommand(weeklyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(announceCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(metricsCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/health", nil)
	},
}

var battleCmd = &cobra.Command{
	Use:   "battle <character-id>",
	Short: "Fight a battle with a character",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{
			"player":   map[string]string{"id": args[0], "imageUrl": playerImage},
			"opponent": map[string]string{"id": opponentID, "imageUrl": opponentImage},
		}
		return performRequest(http.MethodPost, "/api/battle", body)
	},
}

var matchCmd = &cobra.Command{
	Use:   "match [character-id]",
	Short: "Sample an opponent without fighting",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{"userId": userID}
		if len(args) == 1 {
			body["characterId"] = args[0]
		}
		return performRequest(http.MethodPost, "/api/battle/match", body)
	},
}

var rankingsCmd = &cobra.Command{
	Use:   "rankings",
	Short: "Show the overall leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{"limit": {strconv.Itoa(limit)}, "offset": {strconv.Itoa(offset)}}
		return performRequest(http.MethodGet, "/api/rankings?"+q.Encode(), nil)
	},
}

var weeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Show this week's leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/api/rankings/weekly?limit="+strconv.Itoa(limit), nil)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <character-id>",
	Short: "List the latest battles of a character",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/api/characters/"+url.PathEscape(args[0])+"/battles", nil)
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <target-id>",
	Short: "File a moderation report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{
			"targetType":          targetType,
			"targetId":            args[0],
			"reason":              reason,
			"details":             details,
			"reporterId":          reporterID,
			"reporterIsAnonymous": reporterID == "",
		}
		return performRequest(http.MethodPost, "/api/report", body)
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List reports awaiting moderation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/api/reports/pending", nil)
	},
}

var announceCmd = &cobra.Command{
	Use:   "announce",
	Short: "Post the weekly leaderboard to Slack",
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoint := "/scheduled/weekly-leaderboard"
		if week != "" {
			endpoint += "?week=" + url.QueryEscape(week)
		}
		return performRequest(http.MethodPost, endpoint, nil)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the persisted counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/api/stats", nil)
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Get application metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/metrics", nil)
	},
}

func performRequest(method, endpoint string, body any) error {
	target, err := url.Parse(host + endpoint)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if dryRun {
		q := target.Query()
		q.Set("dry_run", "true")
		target.RawQuery = q.Encode()
	}
	fmt.Printf("Making request to %s\n", target)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	fmt.Printf("Status Code: %d\n", resp.StatusCode)
	fmt.Println("Response Body:")
	fmt.Println(string(respBody))

	return nil
}
