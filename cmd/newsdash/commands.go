package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"ai-newsletter/internal/feed"
	"ai-newsletter/internal/ingest"
	"ai-newsletter/internal/model"
	"ai-newsletter/internal/server"
	"ai-newsletter/internal/tui"
	"ai-newsletter/internal/worker"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	port        int
	filterFlag  string
	savedOnly   bool
	jsonOutput  bool
	removeSaved bool
	enrich      bool
	window      string
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = port
		}
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		reloader := worker.NewReloader(a.ctrl, logger)
		go reloader.Start(ctx)

		srv, err := server.NewServer(a.ctrl, reloader, logger)
		if err != nil {
			return err
		}

		// Initial load; a failure is shown on the page.
		reloader.Trigger()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start(strconv.Itoa(cfg.Server.Port))
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
			logger.Info("Shutting down...")
		}

		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", zap.Error(err))
		}
		logger.Info("Goodbye!")
		return nil
	},
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse articles in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		return tui.Run(ctx, a.ctrl, logger)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Load articles once and print the filtered view",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ctrl.Load(ctx); err != nil {
			return errors.New(a.ctrl.Snapshot().Error)
		}
		a.ctrl.SetSourceFilter(filterFlag)
		a.ctrl.SetSavedOnly(savedOnly)
		snap := a.ctrl.Snapshot()

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		printSnapshot(snap)
		return nil
	},
}

func printSnapshot(snap feed.Snapshot) {
	fmt.Println(snap.LastUpdated)
	if snap.State == feed.StateEmptyFilter {
		fmt.Println("No articles match the current filter")
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SAVED\tID\tSOURCE\tWHEN\tTITLE")
	for _, a := range snap.Articles {
		mark := ""
		if a.Saved {
			mark = "♥"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", mark, a.ID, a.SourceLabel, a.TimeAgo, a.Title)
	}
	tw.Flush()
}

var saveCmd = &cobra.Command{
	Use:   "save [article-id]",
	Short: "Save an article id, or remove it with --remove",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		favs, closeFavs, err := openFavorites(cfg, logger)
		if err != nil {
			return err
		}
		defer closeFavs()

		ctx := context.Background()
		id := args[0]
		if removeSaved {
			if err := favs.Remove(ctx, id); err != nil {
				return err
			}
			logger.Info("Article unsaved", zap.String("article_id", id))
			return nil
		}
		if err := favs.Add(ctx, id); err != nil {
			return err
		}
		logger.Info("Article saved", zap.String("article_id", id))
		return nil
	},
}

var savedCmd = &cobra.Command{
	Use:   "saved",
	Short: "Print saved article ids in the order they were saved",
	RunE: func(cmd *cobra.Command, args []string) error {
		favs, closeFavs, err := openFavorites(cfg, logger)
		if err != nil {
			return err
		}
		defer closeFavs()

		for _, id := range favs.GetSaved(context.Background()) {
			fmt.Println(id)
		}
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Short: "Upload scraped articles to the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("window") {
			cfg.Upload.Window = window
		}
		if cmd.Flags().Changed("enrich") {
			cfg.Upload.Enrich = enrich
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		win, err := cfg.UploadWindow()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		w, closeWriter, err := openWriter(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeWriter()

		opts := []ingest.Option{ingest.WithLogger(logger), ingest.WithWindow(win)}
		if cfg.Upload.Enrich {
			opts = append(opts, ingest.WithEnricher(worker.NewEnricher(logger)))
		}

		res, err := ingest.NewPipeline(w, opts...).RunFile(ctx, args[0])
		if err != nil {
			return err
		}
		logger.Info("Upload complete",
			zap.Int("read", res.Read),
			zap.Int("kept", res.Kept),
			zap.Int("enriched", res.Enriched),
			zap.Int("uploaded", res.Upserted))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("newsdash", version)
	},
}

func init() {
	serveCmd.Flags().IntVar(&port, "port", 8080, "HTTP port")

	listCmd.Flags().StringVar(&filterFlag, "filter", model.FilterAll, "Source filter (all, bens_bites, ai_rundown, ...)")
	listCmd.Flags().BoolVar(&savedOnly, "saved-only", false, "Only show saved articles")
	listCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the snapshot as JSON")

	saveCmd.Flags().BoolVar(&removeSaved, "remove", false, "Remove the id instead")

	uploadCmd.Flags().StringVar(&window, "window", "24h", "Only upload articles newer than this; 0 uploads everything")
	uploadCmd.Flags().BoolVar(&enrich, "enrich", false, "Fetch pages to fill missing descriptions")
}
