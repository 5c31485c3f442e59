package main

import (
	"io"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kevmo314/go-u3vterm"
	"github.com/kevmo314/go-u3vterm/pkg/config"
	"github.com/kevmo314/go-u3vterm/pkg/log"
	"github.com/kevmo314/go-u3vterm/pkg/uvcp"
)

// link is an open control channel to a camera.
type link interface {
	uvcp.Transport
	io.Closer
}

// opener opens the camera described by cfg, or the usbfs descriptor fd when
// it is not negative. The returned fields identify the device in logs.
type opener func(cfg *config.Config, fd int, logger *zap.Logger) (link, []zap.Field, error)

func openUSB(pick func([]*u3v.Candidate) (int, error)) opener {
	return func(cfg *config.Config, fd int, logger *zap.Logger) (link, []zap.Field, error) {
		opts := []u3v.Option{
			u3v.WithTimeout(time.Duration(cfg.TransferTimeout)),
			u3v.WithLogger(logger),
		}
		if fd >= 0 {
			dev, err := u3v.OpenFD(uintptr(fd), opts...)
			if err != nil {
				return nil, nil, err
			}
			return dev, log.DeviceFields(dev.VendorID, dev.ProductID, dev.Serial), nil
		}

		candidates, err := u3v.FindCandidates(uint16(cfg.VendorID), uint16(cfg.ProductID), cfg.Serial)
		if err != nil {
			return nil, nil, err
		}
		chosen := 0
		if len(candidates) > 1 {
			if chosen, err = pick(candidates); err != nil {
				for _, c := range candidates {
					err = multierr.Append(err, c.Close())
				}
				return nil, nil, err
			}
		}
		for i, c := range candidates {
			if i != chosen {
				_ = c.Close()
			}
		}
		dev, err := u3v.Open(candidates[chosen], opts...)
		if err != nil {
			return nil, nil, err
		}
		return dev, log.DeviceFields(dev.VendorID, dev.ProductID, dev.Serial), nil
	}
}
