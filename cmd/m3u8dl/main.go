package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Blameying/M3U8-Downloader/internal/api"
	"github.com/Blameying/M3U8-Downloader/internal/domain"
	"github.com/Blameying/M3U8-Downloader/internal/engine"
	"github.com/Blameying/M3U8-Downloader/internal/headers"
	"github.com/Blameying/M3U8-Downloader/internal/infra/config"
	"github.com/Blameying/M3U8-Downloader/internal/infra/logger"
	"github.com/Blameying/M3U8-Downloader/internal/store"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "m3u8dl",
	Short:        "Multi-thread m3u8 downloader",
	RunE:         runDownload,
	SilenceUsage: true,
}

var historyCmd = &cobra.Command{
	Use:          "history",
	Short:        "List recent download runs from the journal",
	RunE:         runHistory,
	SilenceUsage: true,
}

func main() {
	rootCmd.Flags().StringP("file", "f", "", "the local path of the m3u8 file")
	rootCmd.Flags().StringP("url", "u", "", "the base url segments are resolved against")
	rootCmd.Flags().StringP("dest", "d", "", "the path of output dir")
	rootCmd.Flags().IntP("j", "j", 0, "worker count, default: 8")
	rootCmd.Flags().String("header", "", "path of a json file declaring http request headers")
	rootCmd.Flags().BoolP("resume", "r", false, "resume from break-point: skip segments already in dest")
	rootCmd.Flags().String("config", "", "path of an optional yaml config file")
	rootCmd.Flags().Int("timeout", 0, "per-request timeout in seconds, default: 30")
	rootCmd.Flags().String("status-addr", "", "listen address for the status api, disabled when empty")
	rootCmd.MarkFlagRequired("file")
	rootCmd.MarkFlagRequired("url")

	historyCmd.Flags().String("config", "", "path of an optional yaml config file")
	historyCmd.Flags().Int("limit", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDownload(command *cobra.Command, args []string) error {
	cfgPath, _ := command.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	// CLI flags win over config file values
	if command.Flags().Changed("dest") {
		cfg.Download.OutDir, _ = command.Flags().GetString("dest")
	}
	if command.Flags().Changed("j") {
		cfg.Download.Workers, _ = command.Flags().GetInt("j")
	}
	if command.Flags().Changed("timeout") {
		cfg.Download.TimeoutSeconds, _ = command.Flags().GetInt("timeout")
	}
	if command.Flags().Changed("status-addr") {
		cfg.API.StatusAddr, _ = command.Flags().GetString("status-addr")
	}

	lg, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return fmt.Errorf("could not open log file: %w", err)
	}

	headerPath, _ := command.Flags().GetString("header")
	headerSet, err := headers.Load(headerPath)
	if err != nil {
		return err
	}
	if len(headerSet) > 0 {
		lg.Info("header: %v", headerSet)
	}

	var journal engine.Journal
	js, err := store.Open(cfg.Store.JournalPath)
	if err != nil {
		lg.Warn("run journal disabled: %v", err)
	} else {
		journal = js
		defer js.Close()
	}

	dl := engine.New(lg, journal, time.Duration(cfg.Download.TimeoutSeconds)*time.Second)

	if cfg.API.StatusAddr != "" {
		stop := startStatusServer(cfg.API.StatusAddr, dl, js, lg)
		defer stop()
	}

	playlistPath, _ := command.Flags().GetString("file")
	baseURL, _ := command.Flags().GetString("url")
	resume, _ := command.Flags().GetBool("resume")

	job := domain.Job{
		PlaylistPath: playlistPath,
		BaseURL:      baseURL,
		OutDir:       cfg.Download.OutDir,
		Headers:      headerSet,
		Resume:       resume,
		Workers:      cfg.Download.Workers,
	}

	rec, err := dl.Run(context.Background(), job)
	if err != nil {
		return err
	}

	lg.Info("run %s finished: %d written, %d skipped, %d failed", rec.ID, rec.Written, rec.Skipped, rec.Failed)
	return nil
}

func runHistory(command *cobra.Command, args []string) error {
	cfgPath, _ := command.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	limit, _ := command.Flags().GetInt("limit")

	journal, err := store.Open(cfg.Store.JournalPath)
	if err != nil {
		return fmt.Errorf("could not open journal: %w", err)
	}
	defer journal.Close()

	runs, err := journal.RecentRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded yet")
		return nil
	}

	fmt.Printf("%-29s %-10s %9s %8s %7s  %s\n", "ID", "STATUS", "WRITTEN", "SKIPPED", "FAILED", "STARTED")
	for _, r := range runs {
		fmt.Printf("%-29s %-10s %4d/%-4d %8d %7d  %s\n",
			r.ID, r.Status, r.Written, r.Scheduled, r.Skipped, r.Failed,
			r.StartedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// startStatusServer runs the status API in the background for the lifetime
// of the download. The returned func shuts it down.
func startStatusServer(addr string, dl *engine.Downloader, journal *store.Journal, lg *logger.Logger) func() {
	e := api.NewServer(dl, journal, lg)
	srv := &http.Server{Addr: addr, Handler: e}

	go func() {
		lg.Info("status api listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Error("status api: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
