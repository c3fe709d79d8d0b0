package main

import (
	"flag"
	"fmt"
	"os"

	"buffer-language-server/internal/config"
	"buffer-language-server/internal/server"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// Version will be set during the build process using ldflags
var Version = "(dev) v0.0.0"

var log = commonlog.GetLogger(server.Name)

func main() {
	versionFlag := flag.Bool("version", false, "Print the version of the program")
	logfileFlag := flag.String("logfile", "", "Path to log file (default stderr)")
	verbosityFlag := flag.Int("v", 1, "Log verbosity")
	tcpFlag := flag.String("tcp", "", "Listen on this TCP address instead of stdio")
	journalFlag := flag.String("journal", "", "Record every buffer change to this SQLite file")
	replayFlag := flag.String("replay", "", "Print the last session recorded in this journal and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("%s version %s\n", server.Name, Version)
		return
	}

	// Logging. stdout belongs to the protocol.
	var logfile *string
	if *logfileFlag != "" {
		logfile = logfileFlag
	}
	commonlog.Configure(*verbosityFlag, logfile)

	if *replayFlag != "" {
		if err := runReplay(*replayFlag, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "replay: %s\n", err)
			os.Exit(1)
		}
		return
	}

	cfg := config.Default()
	cfg.Journal = *journalFlag

	ls := server.New(cfg, Version)
	defer ls.Close()

	log.Infof("starting %s %s", server.Name, Version)

	transport := ls.Transport(false)
	var err error
	if *tcpFlag != "" {
		err = transport.RunTCP(*tcpFlag)
	} else {
		err = transport.RunStdio()
	}
	if err != nil {
		log.Errorf("server error: %s", err)
		os.Exit(1)
	}
}
