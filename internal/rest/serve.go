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

// Package rest exposes the binning pipeline over HTTP, for driving long
// runs from scripts without shelling out to the CLI.
package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsanders/contbin/internal/pipeline"
)

// Serve starts the HTTP server on the given address (":8080" style).
func Serve(addr string) error {
	r := gin.Default()
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/bin", postBin)
		}
	}
	return r.Run(addr)
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

// binArgs carries the input, output and binning fields of pipeline.Config
// for a POST body. It has no equivalent of the command line's -gaussian
// flag or its smooth and scale commands, and the shape constraint is
// enabled whenever constrainval is positive.
type binArgs struct {
	Input    string `json:"input"`
	Mask     string `json:"mask"`
	Bg       string `json:"bg"`
	ExpMap   string `json:"expmap"`
	BgExpMap string `json:"bgexpmap"`
	NoiseMap string `json:"noisemap"`
	Smoothed string `json:"smoothed"`

	Out         string `json:"out"`
	OutSN       string `json:"outsn"`
	OutBinMap   string `json:"outbinmap"`
	OutSmoothed string `json:"outsmoothed"`
	OutMask     string `json:"outmask"`
	Region      string `json:"region"`
	SNHist      string `json:"snhist"`
	SignalHist  string `json:"signalhist"`
	Preview     string `json:"preview"`
	TIFF        string `json:"tiff"`

	SN           float64 `json:"sn"`
	SmoothSN     float64 `json:"smoothsn"`
	AutoMask     bool    `json:"automask"`
	ConstrainVal float64 `json:"constrainval"`
	NoScrub      bool    `json:"noscrub"`
	BinUp        bool    `json:"binup"`
	ScrubLarge   float64 `json:"scrublarge"`
}

// postBin runs one binning pass in-process, streaming the pipeline log as
// the plain-text response body.
func postBin(c *gin.Context) {
	var args binArgs
	if err := c.ShouldBind(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if args.SN == 0 {
		args.SN = 30
	}
	if args.SmoothSN == 0 {
		args.SmoothSN = 15
	}

	cfg := &pipeline.Config{
		InputFile:    args.Input,
		MaskFile:     args.Mask,
		BgFile:       args.Bg,
		ExpMapFile:   args.ExpMap,
		BgExpMapFile: args.BgExpMap,
		NoiseMapFile: args.NoiseMap,
		SmoothedFile: args.Smoothed,

		OutFile:         args.Out,
		OutSNFile:       args.OutSN,
		OutBinMapFile:   args.OutBinMap,
		OutSmoothedFile: args.OutSmoothed,
		OutMaskFile:     args.OutMask,
		RegionFile:      args.Region,
		SNHistFile:      args.SNHist,
		SignalHistFile:  args.SignalHist,
		PreviewFile:     args.Preview,
		TIFFFile:        args.TIFF,

		TargetSN:     args.SN,
		SmoothSN:     args.SmoothSN,
		AutoMask:     args.AutoMask,
		Constrain:    args.ConstrainVal > 0,
		ConstrainVal: args.ConstrainVal,
		NoScrub:      args.NoScrub,
		BinUp:        args.BinUp,
		ScrubLarge:   args.ScrubLarge,
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if err := pipeline.Run(cfg, w); err != nil {
		c.Error(err)
		w.WriteString("error: " + err.Error() + "\n")
	}
	if f, ok := c.Writer.(http.Flusher); ok {
		f.Flush()
	}
}
