package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/mattn/go-isatty"
	"github.com/ralim/titlecheck/library"
	"github.com/ralim/titlecheck/server"
	"github.com/ralim/titlecheck/settings"
	"github.com/ralim/titlecheck/termui"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

type TitleCheck struct {
	ConfigFilePath string `flag:"config" help:"Path to config file (.json or .toml)"`
	NoCUI          bool   `flag:"noCUI" help:"Disable the Console UI"`
	Once           bool   `flag:"once" help:"Scan, check for updates, print a table and exit"`
	OutdatedOnly   bool   `flag:"outdated" help:"Only print titles that have a newer version available"`

	lib      *library.Library   `flag:"-"`
	ui       *termui.TermUI     `flag:"-"`
	settings *settings.Settings `flag:"-"`
}

func NewTitleCheck() *TitleCheck {
	return &TitleCheck{
		ConfigFilePath: "./conf/titlecheck.json",
	}
}

func (m *TitleCheck) Run() error {
	settingsPath := "./conf/titlecheck.json"
	if m.ConfigFilePath != "" {
		settingsPath = m.ConfigFilePath
	}
	m.settings = settings.NewSettings(settingsPath)

	if m.Once {
		return m.runOnce(os.Stdout)
	}
	return m.runService()
}

// runOnce does a single blocking pass and prints the report
func (m *TitleCheck) runOnce(out io.Writer) error {
	m.settings.SetupLogging(os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m.lib = library.NewFromSettings(m.settings, nil)
	m.lib.Load()
	if _, err := m.lib.ScanNow(ctx, m.settings.ScanFolders()...); err != nil {
		log.Warn().Err(err).Msg("Scan finished with errors")
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	// Failure is already logged, the report uses whatever manifest could be loaded
	_ = m.lib.RefreshManifest(ctx)

	_, err := fmt.Fprintln(out, renderReport(m.lib.VersionReport(), m.OutdatedOnly))
	return err
}

func (m *TitleCheck) runService() error {
	uiExit := make(chan bool, 1)

	if !m.NoCUI && !isTerminal(os.Stdout) {
		m.NoCUI = true
	}
	if !m.NoCUI {
		m.ui = termui.NewTermUI()
		m.settings.SetupLogging(tview.ANSIWriter(m.ui.LogsView))
		go func() {
			if err := m.ui.Run(); err != nil {
				log.Error().Err(err).Msg("Console UI failed")
			}
			m.ui.Stop()
			uiExit <- true
		}()
	} else {
		m.settings.SetupLogging(os.Stdout)
		//Run hook listener for ctrl-c
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		go func() {
			for range c {
				// sig is a ^C, handle it
				log.Warn().Msg("Control-C received, shutting down")
				uiExit <- true
			}
		}()
	}

	m.lib = library.NewFromSettings(m.settings, m.ui)
	if err := m.lib.Start(); err != nil {
		return err
	}

	server := server.NewServer(m.lib, m.settings)
	server.Run()

	//Wait for exit
	<-uiExit

	//Rediect logs back to terminal since UI has exited
	m.settings.SetupLogging(os.Stdout)
	fmt.Println("Waiting for tasks to stop")
	server.Stop() // stop the servers
	m.lib.Stop()  // wait for library to close down
	fmt.Println(renderReport(m.lib.VersionReport(), m.OutdatedOnly))
	return nil
}

func isTerminal(file *os.File) bool {
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
