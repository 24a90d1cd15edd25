package replay

import (
	"io"
	"os"
	"strings"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/rcognita/turtlenav/localization"
)

// ReadBag reads the contents of a rosbag into a gobag data structure.
func ReadBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()
	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to create ros bag")
	}
	return rb, nil
}

// topicKey is the key the bag parser files a topic's messages under.
func topicKey(topic string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(topic, "/"), "/", "_"))
}

// OdometryFromBag returns every odometry sample recorded on topic, in recording order.
func OdometryFromBag(rb *rosbag.RosBag, topic string) ([]localization.RawPoseSample, error) {
	if err := rb.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		func(t string) bool { return topicKey(t) == topicKey(topic) },
		false,
	); err != nil {
		return nil, errors.Wrapf(err, "error while parsing bag to JSON")
	}

	msgs := rb.TopicsAsJSON[topicKey(topic)]
	if msgs == nil {
		return nil, errors.Errorf("no messages for topic %s", topic)
	}

	var samples []localization.RawPoseSample
	for {
		data, err := msgs.ReadBytes('\n')
		if len(data) > 0 {
			sample, decodeErr := decodeOdometryLine(data)
			if decodeErr != nil {
				return nil, errors.Wrapf(decodeErr, "message %d on %s", len(samples), topic)
			}
			samples = append(samples, sample)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}
	return samples, nil
}

// LoadBag reads odometry samples for topic from the bag at path.
func LoadBag(path, topic string) ([]localization.RawPoseSample, error) {
	rb, err := ReadBag(path)
	if err != nil {
		return nil, err
	}
	return OdometryFromBag(rb, topic)
}
