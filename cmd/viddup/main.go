// Command viddup finds duplicate scenes across a video collection. It
// imports files into a fingerprint store and searches the fingerprints
// for near-identical scene sequences.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/banshee-data/viddup/internal/ingest"
	"github.com/banshee-data/viddup/internal/knn"
	"github.com/banshee-data/viddup/internal/maintain"
	"github.com/banshee-data/viddup/internal/monitoring"
	"github.com/banshee-data/viddup/internal/report"
	"github.com/banshee-data/viddup/internal/search"
	"github.com/banshee-data/viddup/internal/store"
	"github.com/banshee-data/viddup/internal/version"
)

var (
	dbPath    = flag.String("db", defaultDBPath(), "sqlite database file")
	importDir = flag.String("dir", "", "import all videos beneath this directory")
	fileGlob  = flag.String("file", "", "import files matching this glob")
	refresh   = flag.Bool("refresh", false, "re-import files already in the database")
	repair    = flag.Bool("repair", false, "remux containers with broken duration metadata before import")
	vidExt    = flag.String("vidext", strings.Join(ingest.DefaultExtensions, ","), "comma list of video extensions")

	doSearch  = flag.Bool("search", false, "search for duplicate scenes")
	ui        = flag.Bool("ui", false, "review results in the external UI")
	searchRes = flag.String("searchres", "", "file to write search results to, or read them back from")

	indexLength = flag.Int("indexlength", 10, "window dimension")
	sceneLength = flag.Float64("scenelength", 300, "per-window time budget in seconds")
	radius      = flag.Float64("radius", 3.0, "L2 distance cutoff")
	step        = flag.Int("step", 1, "query stride over windows")
	ignoreStart = flag.Float64("ignore_start", 0, "seconds to ignore at the start of each file")
	ignoreEnd   = flag.Float64("ignore_end", 0, "seconds to ignore at the end of each file")
	fixSpeed    = flag.Bool("fixspeed", false, "normalize windows against playback speed")
	knnLib      = flag.String("knnlib", "kdtree", "index backend: kdtree, vptree or linear")

	purge       = flag.Bool("purge", false, "report files missing on disk")
	doDelete    = flag.Bool("delete", false, "delete files missing on disk from the database")
	doRename    = flag.Bool("rename", false, "rename OLD NEW: move a file and update the database")
	fixRenames  = flag.Bool("fixrenames", false, "reconcile moved files beneath --dir")
	doWhitelist = flag.Bool("whitelist", false, "whitelist all pairs among the listed files")
	migrate     = flag.Bool("migrate", false, "recompute extrema for files with brightness but no hashes")
	plotFile    = flag.String("plot", "", "write a fingerprint report of this file")
	plotOut     = flag.String("plotout", "fingerprint.html", "output path of the fingerprint report")

	niceLevel   = flag.Int("nice", 5, "process nice level")
	debug       = flag.Bool("debug", false, "log debug details")
	showVersion = flag.Bool("version", false, "print the build identity and exit")
)

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "viddup.db"
	}
	return filepath.Join(home, ".viddup.db")
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if !*debug {
		plain := monitoring.Logf
		monitoring.SetLogger(func(level monitoring.Level, format string, v ...interface{}) {
			if level == monitoring.LevelDebug {
				return
			}
			plain(level, format, v...)
		})
	}

	if err := unix.Setpriority(unix.PRIO_PROCESS, 0, *niceLevel); err != nil {
		monitoring.Warnf("set nice level %d: %v", *niceLevel, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		monitoring.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	st, err := store.Open(*dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	exts := ingest.ParseExtensions(*vidExt)

	switch {
	case *doRename:
		if flag.NArg() != 2 {
			return fmt.Errorf("--rename needs exactly OLD and NEW paths, got %d args", flag.NArg())
		}
		return maintain.Rename(st, flag.Arg(0), flag.Arg(1))

	case *doWhitelist:
		if flag.NArg() < 2 {
			return fmt.Errorf("--whitelist needs at least two paths, got %d", flag.NArg())
		}
		return maintain.Whitelist(st, flag.Args())

	case *doDelete:
		return maintain.Purge(st, false)

	case *purge:
		return maintain.Purge(st, true)

	case *migrate:
		return maintain.Rehash(st)

	case *fixRenames:
		if *importDir == "" {
			return errors.New("--fixrenames needs --dir")
		}
		return maintain.FixMoved(st, *importDir, exts)

	case *plotFile != "":
		return report.Fingerprint(st, *plotFile, *plotOut)
	}

	if err := runImports(ctx, st, exts); err != nil {
		return err
	}
	return runSearch(ctx, st)
}

func runImports(ctx context.Context, st *store.Store, exts map[string]bool) error {
	var paths []string
	if *importDir != "" {
		found, err := ingest.FindVideos(*importDir, exts)
		if err != nil {
			return err
		}
		paths = append(paths, found...)
	}
	if *fileGlob != "" {
		found, err := filepath.Glob(*fileGlob)
		if err != nil {
			return fmt.Errorf("bad glob %q: %w", *fileGlob, err)
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return nil
	}

	im := &ingest.Importer{Store: st, Refresh: *refresh, Repair: *repair}
	return im.ImportAll(ctx, paths)
}

func runSearch(ctx context.Context, st *store.Store) error {
	var groups []search.Group

	switch {
	case *doSearch:
		p := knn.Params{
			IndexLength: *indexLength,
			SceneLength: *sceneLength,
			Radius:      *radius,
			Step:        *step,
			IgnoreStart: *ignoreStart,
			IgnoreEnd:   *ignoreEnd,
			FixSpeed:    *fixSpeed,
			Backend:     *knnLib,
		}
		set, err := knn.BuildItems(st, p)
		if err != nil {
			return err
		}
		idx, err := knn.NewIndex(set, p.Backend)
		if err != nil {
			return err
		}
		groups, err = search.Run(idx, set, st, p)
		if err != nil {
			return err
		}
		if *searchRes != "" {
			if err := search.Save(*searchRes, groups); err != nil {
				return err
			}
		}

	case *searchRes != "":
		loaded, err := search.Load(*searchRes)
		if err != nil {
			return err
		}
		groups, err = search.Reproject(loaded, st)
		if err != nil {
			return err
		}

	default:
		return nil
	}

	if *ui {
		return launchUI(ctx, groups)
	}
	return search.Print(os.Stdout, groups)
}

// launchUI hands the result set to the external review tool, writing it
// to a scratch file when no --searchres was given.
func launchUI(ctx context.Context, groups []search.Group) error {
	resPath := *searchRes
	if resPath == "" {
		tmp, err := os.CreateTemp("", "viddup-results-*.yaml")
		if err != nil {
			return err
		}
		tmp.Close()
		defer os.Remove(tmp.Name())
		resPath = tmp.Name()
		if err := search.Save(resPath, groups); err != nil {
			return err
		}
	}

	uiCmd := os.Getenv("VIDDUP_UI")
	if uiCmd == "" {
		uiCmd = "viddup-ui"
	}
	cmd := exec.CommandContext(ctx, uiCmd, "--db", *dbPath, resPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", uiCmd, err)
	}
	return nil
}
