package config

import (
	"bytes"
	"encoding/json"
	"io"
	"reflect"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// Read reads a config from the given file. Environment variables in the file are expanded before
// decoding, and any field the file omits keeps its default.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(bytes.NewReader(buf))
}

// FromReader decodes a JSON config from r on top of Default and validates it.
func FromReader(r io.Reader) (*Config, error) {
	var attrs map[string]interface{}
	if err := json.NewDecoder(r).Decode(&attrs); err != nil {
		return nil, errors.Wrap(err, "failed to decode Config from json")
	}
	cfg := Default()
	if err := decodeAttributes(attrs, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process Config")
	}
	if err := cfg.Validate("turtlenav"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeAttributes(attrs map[string]interface{}, to *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      to,
		ErrorUnused: true,
		// slices from the file replace the defaults instead of overlaying them
		ZeroFields: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			float64ToIntHook,
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(attrs)
}

// float64ToIntHook rejects fractional values for integer fields; encoding/json hands every number
// over as float64.
func float64ToIntHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.Float64 || to.Kind() != reflect.Int {
		return data, nil
	}
	f := data.(float64)
	if f != float64(int(f)) {
		return nil, errors.Errorf("expected an integer, got %v", f)
	}
	return int(f), nil
}
