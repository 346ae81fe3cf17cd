package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ecosort/internal/config"
	"ecosort/internal/dto"
	"ecosort/internal/model"
	"ecosort/internal/repository/sqlite"
)

var (
	historyLimit          int
	historyClassification string
	historyStatus         string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent captures",
	RunE:  runHistory,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the whole capture history",
	RunE:  runHistoryClear,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyClearCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of captures to show")
	historyCmd.Flags().StringVar(&historyClassification, "classification", "", "Only show recycle, waste or mix")
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "Only show resolved, rejected or timed_out")
}

func openRepository() (*sqlite.DB, *sqlite.CaptureRepository, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config load failed: %w", err)
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("db init failed: %w", err)
	}
	return db, sqlite.NewCaptureRepository(db), nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, repo, err := openRepository()
	if err != nil {
		return err
	}
	defer db.Close()

	captures, err := repo.GetAll(&dto.CaptureFilter{
		Classification: model.Category(historyClassification),
		Status:         historyStatus,
		Limit:          historyLimit,
	})
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	if len(captures) == 0 {
		fmt.Println("No captures found")
		return nil
	}

	fmt.Printf("%-20s %-10s %-14s %-6s %-36s %s\n", "CREATED", "STATUS", "CLASSIFICATION", "CONF", "SESSION", "FILE")
	fmt.Println("--------------------------------------------------------------------------------------------------------------")

	for _, c := range captures {
		classification := string(c.Classification)
		if classification == "" {
			classification = "-"
		}
		filename := c.Filename
		if filename == "" {
			filename = "-"
		}
		fmt.Printf("%-20s %-10s %-14s %-6.2f %-36s %s\n",
			c.CreatedAt.Local().Format(time.DateTime), c.Status, classification, c.Confidence, c.SessionID, filename)
	}

	counts, err := repo.CountByClassification()
	if err != nil {
		return fmt.Errorf("count failed: %w", err)
	}
	fmt.Printf("\nrecycle: %d  waste: %d  mix: %d\n",
		counts[model.CategoryRecycle], counts[model.CategoryWaste], counts[model.CategoryMix])
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	db, repo, err := openRepository()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repo.DeleteAll(); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}
	fmt.Println("Capture history cleared")
	return nil
}
