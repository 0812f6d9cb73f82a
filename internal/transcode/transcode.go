// Package transcode implements the narrow Transcoder collaborator the
// Sync Executor and File Cache consume through filecache.Transcoder
// (§1: "the file-format transcoder is an opaque capability the core
// consumes"). It covers the directions the testable-property scenarios
// actually exercise — FIT to GPX/TCX — grounded on FitGlue-server's
// fit_parser.ParseFitFile record-extraction loop (MesgNumRecord fields:
// timestamp, position, altitude), reshaped from a protobuf target into
// plain GPX/TCX XML since no protobuf schema survives into this module.
package transcode

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
)

const semicircleToDegrees = 180.0 / (1 << 31)

type trackPoint struct {
	Time      time.Time
	Lat, Lon  float64
	HasLatLon bool
	Elevation float64
	HasElev   bool
	HeartRate int
}

// decodeFitTrack walks every Record message in a FIT file, matching
// FitGlue-server's parseRecord field set.
func decodeFitTrack(data []byte) ([]trackPoint, error) {
	if err := validateHeader(data); err != nil {
		return nil, err
	}

	dec := decoder.New(bytes.NewReader(data))
	var points []trackPoint

	for dec.Next() {
		fitData, err := dec.Decode()
		if err != nil {
			return nil, fmt.Errorf("decoding fit messages: %w", err)
		}
		for _, msg := range fitData.Messages {
			if msg.Num != typedef.MesgNumRecord {
				continue
			}
			rec := mesgdef.NewRecord(&msg)
			if rec.Timestamp.IsZero() {
				continue
			}

			pt := trackPoint{Time: rec.Timestamp.UTC()}
			if rec.PositionLat != 0x7FFFFFFF && rec.PositionLong != 0x7FFFFFFF {
				pt.Lat = float64(rec.PositionLat) * semicircleToDegrees
				pt.Lon = float64(rec.PositionLong) * semicircleToDegrees
				pt.HasLatLon = true
			}
			if rec.Altitude != 0xFFFF {
				pt.Elevation = float64(rec.Altitude)/5 - 500
				pt.HasElev = true
			}
			if rec.HeartRate != 0xFF {
				pt.HeartRate = int(rec.HeartRate)
			}
			points = append(points, pt)
		}
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("fit file has no record messages")
	}
	return points, nil
}

func validateHeader(data []byte) error {
	dec := decoder.New(bytes.NewReader(data))
	if !dec.Next() {
		return fmt.Errorf("fit file has no messages")
	}
	return nil
}

// --- GPX ---

type gpxTrkpt struct {
	Lat  float64 `xml:"lat,attr"`
	Lon  float64 `xml:"lon,attr"`
	Ele  *float64 `xml:"ele,omitempty"`
	Time string  `xml:"time"`
}

type gpxTrkseg struct {
	Points []gpxTrkpt `xml:"trkpt"`
}

type gpxTrk struct {
	Seg gpxTrkseg `xml:"trkseg"`
}

type gpxDoc struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	Xmlns   string   `xml:"xmlns,attr"`
	Trk     gpxTrk   `xml:"trk"`
}

func encodeGPX(points []trackPoint) ([]byte, error) {
	doc := gpxDoc{Version: "1.1", Creator: "fitsync", Xmlns: "http://www.topografix.com/GPX/1/1"}
	for _, p := range points {
		if !p.HasLatLon {
			continue
		}
		pt := gpxTrkpt{Lat: p.Lat, Lon: p.Lon, Time: p.Time.Format(time.RFC3339)}
		if p.HasElev {
			ele := p.Elevation
			pt.Ele = &ele
		}
		doc.Trk.Seg.Points = append(doc.Trk.Seg.Points, pt)
	}
	if len(doc.Trk.Seg.Points) == 0 {
		return nil, fmt.Errorf("fit file has no geolocated points, cannot produce gpx")
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// --- TCX ---

type tcxTrackpoint struct {
	Time           string   `xml:"Time"`
	Position       *tcxPos  `xml:"Position,omitempty"`
	AltitudeMeters *float64 `xml:"AltitudeMeters,omitempty"`
	HeartRateBpm   *int     `xml:"HeartRateBpm>Value,omitempty"`
}

type tcxPos struct {
	LatitudeDegrees  float64 `xml:"LatitudeDegrees"`
	LongitudeDegrees float64 `xml:"LongitudeDegrees"`
}

type tcxTrack struct {
	Trackpoints []tcxTrackpoint `xml:"Trackpoint"`
}

type tcxLap struct {
	StartTime string   `xml:"StartTime,attr"`
	Track     tcxTrack `xml:"Track"`
}

type tcxActivity struct {
	Sport string   `xml:"Sport,attr"`
	ID    string   `xml:"Id"`
	Lap   tcxLap   `xml:"Lap"`
}

type tcxDoc struct {
	XMLName    xml.Name      `xml:"TrainingCenterDatabase"`
	Xmlns      string        `xml:"xmlns,attr"`
	Activities []tcxActivity `xml:"Activities>Activity"`
}

func encodeTCX(points []trackPoint) ([]byte, error) {
	activity := tcxActivity{
		Sport: "Other",
		ID:    points[0].Time.Format(time.RFC3339),
		Lap:   tcxLap{StartTime: points[0].Time.Format(time.RFC3339)},
	}
	for _, p := range points {
		tp := tcxTrackpoint{Time: p.Time.Format(time.RFC3339)}
		if p.HasLatLon {
			tp.Position = &tcxPos{LatitudeDegrees: p.Lat, LongitudeDegrees: p.Lon}
		}
		if p.HasElev {
			ele := p.Elevation
			tp.AltitudeMeters = &ele
		}
		if p.HeartRate > 0 {
			hr := p.HeartRate
			tp.HeartRateBpm = &hr
		}
		activity.Lap.Track.Trackpoints = append(activity.Lap.Track.Trackpoints, tp)
	}

	doc := tcxDoc{Xmlns: "http://www.garmin.com/xmlschemas/TrainingCenterDatabase/v2", Activities: []tcxActivity{activity}}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// Transcoder implements filecache.Transcoder (and, via the type alias in
// internal/sync, sync.Transcoder) for the fit->gpx and fit->tcx
// directions.
type Transcoder struct{}

// Supports reports true only for fit->gpx and fit->tcx; every other
// direction (gpx/tcx as a source, or fit as a target) has no
// implementation here and falls through to ensure_file's "no transcoder
// path" error, which is the correct outcome per §4.8 rather than a
// silently wrong conversion.
func (Transcoder) Supports(from, to string) bool {
	return from == "fit" && (to == "gpx" || to == "tcx")
}

func (Transcoder) Transcode(data []byte, from, to string) ([]byte, error) {
	if from != "fit" {
		return nil, fmt.Errorf("unsupported source format %q", from)
	}
	points, err := decodeFitTrack(data)
	if err != nil {
		return nil, err
	}
	switch to {
	case "gpx":
		return encodeGPX(points)
	case "tcx":
		return encodeTCX(points)
	default:
		return nil, fmt.Errorf("unsupported target format %q", to)
	}
}
