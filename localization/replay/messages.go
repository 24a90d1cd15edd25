package replay

import (
	"bufio"
	"encoding/json"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/rcognita/turtlenav/localization"
	"github.com/rcognita/turtlenav/spatialmath"
)

// OdometryMessage is a nav_msgs/Odometry message in the JSON line layout the bag parser emits.
type OdometryMessage struct {
	Meta struct {
		Secs  int64
		Nsecs int64
	}
	Data struct {
		Header struct {
			Seq   int
			Stamp struct {
				Secs  int64
				Nsecs int64
			}
			FrameID string `json:"frame_id"`
		}
		ChildFrameID string `json:"child_frame_id"`
		Pose         struct {
			Pose struct {
				Position struct {
					X float64
					Y float64
					Z float64
				}
				Orientation spatialmath.Quaternion
			}
		}
	}
}

// Sample converts the message. The header stamp wins over the recording time when it is set.
func (m *OdometryMessage) Sample() localization.RawPoseSample {
	stamp := time.Unix(m.Data.Header.Stamp.Secs, m.Data.Header.Stamp.Nsecs)
	if m.Data.Header.Stamp.Secs == 0 && m.Data.Header.Stamp.Nsecs == 0 {
		stamp = time.Unix(m.Meta.Secs, m.Meta.Nsecs)
	}
	return localization.RawPoseSample{
		X:           m.Data.Pose.Pose.Position.X,
		Y:           m.Data.Pose.Pose.Position.Y,
		Orientation: m.Data.Pose.Pose.Orientation,
		Stamp:       stamp,
	}
}

func decodeOdometryLine(line []byte) (localization.RawPoseSample, error) {
	var msg OdometryMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return localization.RawPoseSample{}, errors.Wrap(err, "invalid odometry message")
	}
	return msg.Sample(), nil
}

// DecodeOdometry reads one odometry message per line from r.
func DecodeOdometry(r io.Reader) ([]localization.RawPoseSample, error) {
	var samples []localization.RawPoseSample
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		sample, err := decodeOdometryLine(scanner.Bytes())
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		samples = append(samples, sample)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}
