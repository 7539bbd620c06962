// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/radioimg/gaussfind/internal/catalog"
	"github.com/radioimg/gaussfind/internal/corelog"
	"github.com/radioimg/gaussfind/internal/demoimage"
	"github.com/radioimg/gaussfind/internal/image"
	"github.com/radioimg/gaussfind/internal/orchestrator"
	"github.com/radioimg/gaussfind/internal/rest"
)

const version = "0.1.0"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")
var logFile = flag.String("log", "", "also mirror log output to `file`")

var port = flag.Int64("port", 8080, "port for serving the HTTP API")
var chroot = flag.String("chroot", "", "directory to chroot and chdir to when serving HTTP. must be run as root")
var setuid = flag.Int64("setuid", -1, "user id number to setuid to when serving HTTP. must be run as root")

var job = flag.String("job", "", "JSON job specification (orchestrator.Config plus optional priorized catalog) to run")
var out = flag.String("out", "", "write the result catalog to `file` as newline-delimited JSON; empty prints to stdout")

var seedClip = flag.Float64("seedClip", 5, "seed threshold, multiples of local RMS")
var floodClip = flag.Float64("floodClip", 4, "flood threshold, multiples of local RMS")
var boxSizeBeams = flag.Float64("boxSizeBeams", 10, "background averaging box size, in beams")
var meshSizeBeams = flag.Float64("meshSizeBeams", 20, "mesh background tile size, in beams")
var backgroundMode = flag.String("backgroundMode", "fft", "background estimator: fft or mesh")
var meshScaleMode = flag.String("meshScaleMode", "iqr", "mesh estimator per-tile scale statistic: iqr or mad")
var maxSummits = flag.Int64("maxSummits", 0, "maximum summits fitted per island; further summits are reported unfitted (NOTFIT), 0=unlimited")
var workers = flag.Int64("workers", 0, "island-dispatch pool size, 0=memory-aware default")
var seed = flag.Int64("seed", 1, "seed for the background estimator's deterministic noise fill")

type jobSpec struct {
	ImageRef  string                     `json:"imageRef"`
	Config    orchestrator.Config        `json:"config"`
	Priorized []orchestrator.PriorSource `json:"priorized,omitempty"`
}

func main() {
	start := time.Now()

	flag.Usage = func() {
		corelog.Printf(`gaussfind Copyright (c) 2026
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (detect|serve|version|help) [image.json]

Commands:
  detect  Run the detection pipeline on a demoimage.File and print its catalog
  serve   Serve the HTTP job API
  version Show version information
  help    Show this message

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *logFile != "" {
		if err := corelog.AlsoToFile(*logFile); err != nil {
			corelog.Fatal("could not open log file: ", err)
		}
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			corelog.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			corelog.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}

	var err error
	switch args[0] {
	case "serve":
		err = runServe()

	case "detect":
		if *job != "" {
			err = runJobFile(*job)
		} else if len(args) >= 2 {
			err = runDetect(args[1])
		} else {
			err = fmt.Errorf("detect requires either -job or an image.json path")
		}

	case "version":
		corelog.Printf("Version %s\n", version)

	case "help", "?":
		flag.Usage()

	default:
		corelog.Printf("Unknown command %q\n\n", args[0])
		flag.Usage()
		return
	}

	if err != nil {
		corelog.Fatal("Error: ", err.Error())
	}

	elapsed := time.Since(start).Round(time.Millisecond * 10)
	corelog.Printf("\nDone after %s\n", elapsed)

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			corelog.Fatal("could not create memory profile: ", err)
		}
		defer f.Close()
		if err := pprof.Lookup("allocs").WriteTo(f, 0); err != nil {
			corelog.Fatal("could not write allocation profile: ", err)
		}
	}

	corelog.Sync()
}

func runServe() error {
	rest.MakeSandbox(*chroot, int(*setuid))
	srv := &rest.Server{Images: demoImageSource{}}
	return srv.Serve(int(*port))
}

// demoImageSource adapts demoimage.Load to rest.ImageSource.
type demoImageSource struct{}

func (demoImageSource) Load(ref string) (image.PixelImage, image.Beam, image.PixelScale, image.WCSProvider, image.BeamProvider, error) {
	return demoimage.Load(ref)
}

func flagConfig() orchestrator.Config {
	return orchestrator.Config{
		SeedClip:       *seedClip,
		FloodClip:      *floodClip,
		BoxSizeBeams:   *boxSizeBeams,
		MeshSizeBeams:  *meshSizeBeams,
		BackgroundMode: *backgroundMode,
		MeshScaleMode:  *meshScaleMode,
		MaxSummits:     int(*maxSummits),
		Workers:        int(*workers),
		Seed:           uint32(*seed),
	}
}

func runDetect(imageRef string) error {
	img, beam, scale, wcs, beams, err := demoimage.Load(imageRef)
	if err != nil {
		return err
	}
	ctxt, err := orchestrator.New(flagConfig(), img, beam, scale, wcs, beams)
	if err != nil {
		return err
	}
	entries, err := ctxt.Run(context.Background())
	if err != nil {
		return err
	}
	return writeEntries(entries)
}

func runJobFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	var spec jobSpec
	if err := json.Unmarshal(content, &spec); err != nil {
		return fmt.Errorf("unmarshaling %s: %w", path, err)
	}

	img, beam, scale, wcs, beams, err := demoimage.Load(spec.ImageRef)
	if err != nil {
		return err
	}
	ctxt, err := orchestrator.New(spec.Config, img, beam, scale, wcs, beams)
	if err != nil {
		return err
	}

	var entries []catalog.Entry
	if len(spec.Priorized) > 0 {
		entries, err = ctxt.RunPriorized(context.Background(), spec.Priorized)
	} else {
		entries, err = ctxt.Run(context.Background())
	}
	if err != nil {
		return err
	}
	return writeEntries(entries)
}

func writeEntries(entries []catalog.Entry) error {
	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("creating %s: %w", *out, err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}
