package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/File-creater/bustub/internal/logmgr"
	"github.com/File-creater/bustub/internal/storage/buffer"
	"github.com/File-creater/bustub/internal/storage/disk"
)

func main() {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.TimeOnly,
	})))

	path := flag.String("db", "bustub.db", "backing file for the disk manager")
	poolSize := flag.Int("pool-size", 64, "number of buffer pool frames")
	replacerK := flag.Int("k", 2, "K for the LRU-K replacer")
	bucketSize := flag.Int("bucket-size", 4, "directory bucket capacity")
	flag.Parse()

	dm, err := disk.NewFileManager(*path, *poolSize)
	if err != nil {
		slog.Error("open disk manager", "err", err)
		os.Exit(1)
	}
	defer dm.Close()

	lm := logmgr.New(slog.Default())
	bp := buffer.New(*poolSize, *replacerK, *bucketSize, dm, lm)

	pid, frame, err := bp.NewPage()
	if err != nil {
		slog.Error("new_page", "err", err)
		os.Exit(1)
	}
	copy(frame.Page.Data[:], []byte("bustub buffer pool manager"))
	bp.UnpinPage(pid, true)
	bp.FlushPage(pid)

	fmt.Printf("allocated page %d, pool size %d, replacer k %d\n", pid, *poolSize, *replacerK)
}
