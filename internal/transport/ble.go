package transport

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultScanTimeout bounds one discovery pass. Discovery without a
	// deadline would hang forever when the board is off.
	DefaultScanTimeout = 15 * time.Second

	defaultDialTimeout = 10 * time.Second
	bleFrameBuffer     = 128
)

// BLEDeviceFactory creates the host BLE device. Overridable in tests, the
// same way the platform split is handled elsewhere in the ecosystem.
var BLEDeviceFactory = func() (ble.Device, error) {
	return linux.NewDevice()
}

// BLEConfig configures the BLE transport. UUIDs and the name prefix are
// free-text inputs; they are whitespace-trimmed and otherwise passed through
// to the UUID parser.
type BLEConfig struct {
	ServiceUUID        string
	CharacteristicUUID string
	NamePrefix         string
	ScanTimeout        time.Duration
}

// BLETransport discovers a sensor board advertising the configured service
// and subscribes to its data characteristic.
type BLETransport struct {
	cfg    BLEConfig
	logger *logrus.Logger
}

// NewBLETransport creates a BLE transport. A nil logger gets a default.
func NewBLETransport(cfg BLEConfig, logger *logrus.Logger) *BLETransport {
	if logger == nil {
		logger = logrus.New()
	}
	cfg.ServiceUUID = strings.TrimSpace(cfg.ServiceUUID)
	cfg.CharacteristicUUID = strings.TrimSpace(cfg.CharacteristicUUID)
	cfg.NamePrefix = strings.TrimSpace(cfg.NamePrefix)
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = DefaultScanTimeout
	}
	return &BLETransport{cfg: cfg, logger: logger}
}

// Connect discovers the device, dials it, and subscribes to notifications on
// the configured characteristic.
//
// Discovery first applies the full filter set (name prefix + advertised
// service). If that pass ends with no matching device, one more pass runs
// with the filters relaxed: the name match is dropped and the service
// advertisement becomes optional. Any other discovery failure is fatal
// immediately; there is no retry loop beyond that single relaxation.
func (t *BLETransport) Connect(ctx context.Context) (Conn, error) {
	svcUUID, err := ble.Parse(t.cfg.ServiceUUID)
	if err != nil {
		return nil, connErr(BadConfig, "service UUID "+t.cfg.ServiceUUID, err)
	}
	charUUID, err := ble.Parse(t.cfg.CharacteristicUUID)
	if err != nil {
		return nil, connErr(BadConfig, "characteristic UUID "+t.cfg.CharacteristicUUID, err)
	}

	dev, err := BLEDeviceFactory()
	if err != nil {
		return nil, connErr(ScanFailed, "initializing BLE device", err)
	}

	addr, err := t.discover(ctx, dev, svcUUID, false)
	if errors.Is(err, ErrNoDeviceFound) {
		t.logger.Info("No device matched filters, retrying with relaxed filters")
		addr, err = t.discover(ctx, dev, svcUUID, true)
	}
	if err != nil {
		t.stopDevice(dev)
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()
	client, err := dev.Dial(dialCtx, ble.NewAddr(addr))
	if err != nil {
		t.stopDevice(dev)
		return nil, connErr(OpenFailed, "dialing "+addr, err)
	}

	conn, err := t.subscribe(dev, client, svcUUID, charUUID)
	if err != nil {
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			t.logger.WithError(cancelErr).Debug("Cancelling connection after failed subscribe")
		}
		t.stopDevice(dev)
		return nil, err
	}

	t.logger.WithFields(logrus.Fields{
		"address":        addr,
		"service":        svcUUID.String(),
		"characteristic": charUUID.String(),
	}).Info("BLE sensor connected")
	return conn, nil
}

// discover runs one scan pass and returns the address of the first matching
// advertisement. Relaxed mode ignores the name prefix and accepts devices
// that do not advertise the service at all.
func (t *BLETransport) discover(ctx context.Context, dev ble.Device, svcUUID ble.UUID, relaxed bool) (string, error) {
	seen := hashmap.New[string, string]()
	var matched atomic.Value // string address

	scanCtx, cancel := context.WithTimeout(ctx, t.cfg.ScanTimeout)
	defer cancel()

	handler := func(adv ble.Advertisement) {
		addr := adv.Addr().String()
		seen.Set(addr, adv.LocalName())
		if !t.matches(adv, svcUUID, relaxed) {
			return
		}
		if matched.CompareAndSwap(nil, addr) {
			t.logger.WithFields(logrus.Fields{
				"address": addr,
				"name":    adv.LocalName(),
				"rssi":    adv.RSSI(),
				"relaxed": relaxed,
			}).Info("Matched sensor advertisement")
			cancel()
		}
	}

	err := dev.Scan(scanCtx, false, handler)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return "", connErr(ScanFailed, "BLE scan", err)
	}
	if parentErr := ctx.Err(); parentErr != nil {
		return "", connErr(ScanFailed, "connect cancelled", parentErr)
	}

	if addr, ok := matched.Load().(string); ok && addr != "" {
		return addr, nil
	}
	t.logger.WithFields(logrus.Fields{
		"advertisements": seen.Len(),
		"relaxed":        relaxed,
	}).Warn("Discovery finished without a match")
	return "", connErr(NoDeviceFound, "no device matched discovery filters", nil)
}

// matches applies the discovery filters to one advertisement.
func (t *BLETransport) matches(adv ble.Advertisement, svcUUID ble.UUID, relaxed bool) bool {
	advertisesService := false
	for _, u := range adv.Services() {
		if u.Equal(svcUUID) {
			advertisesService = true
			break
		}
	}

	if relaxed {
		// Service advertisement is optional; the board may expose the
		// service only after connection.
		return advertisesService || len(adv.Services()) == 0
	}

	if t.cfg.NamePrefix != "" && !strings.HasPrefix(adv.LocalName(), t.cfg.NamePrefix) {
		return false
	}
	return advertisesService
}

// subscribe discovers the GATT profile, locates the data characteristic, and
// enables notifications feeding the frame channel.
func (t *BLETransport) subscribe(dev ble.Device, client ble.Client, svcUUID, charUUID ble.UUID) (*bleConn, error) {
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		return nil, connErr(OpenFailed, "discovering GATT profile", err)
	}

	var target *ble.Characteristic
	for _, svc := range profile.Services {
		if !svc.UUID.Equal(svcUUID) {
			continue
		}
		for _, ch := range svc.Characteristics {
			if ch.UUID.Equal(charUUID) {
				target = ch
				break
			}
		}
	}
	if target == nil {
		return nil, connErr(SubscribeFailed, "characteristic "+charUUID.String()+" not found in service "+svcUUID.String(), nil)
	}

	conn := &bleConn{
		dev:    dev,
		client: client,
		char:   target,
		frames: NewRingChannel[Frame](bleFrameBuffer),
		logger: t.logger,
	}

	if err := client.Subscribe(target, false, conn.onNotification); err != nil {
		return nil, connErr(SubscribeFailed, "enabling notifications", err)
	}

	// The link can drop from the peripheral side at any moment; mirror
	// that into the frame stream so consumers observe a closed channel.
	if watcher, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		go func() {
			<-watcher.Disconnected()
			if !conn.closed.Load() {
				t.logger.Warn("BLE link lost")
			}
			conn.frames.Close()
		}()
	}

	return conn, nil
}

func (t *BLETransport) stopDevice(dev ble.Device) {
	if err := dev.Stop(); err != nil {
		t.logger.WithError(err).Debug("Stopping BLE device failed")
	}
}

type bleConn struct {
	dev    ble.Device
	client ble.Client
	char   *ble.Characteristic
	frames *RingChannel[Frame]
	closed atomic.Bool
	logger *logrus.Logger
}

func (c *bleConn) Frames() <-chan Frame {
	return c.frames.C()
}

// onNotification copies the payload out of the stack buffer go-ble hands us
// and publishes it as one frame.
func (c *bleConn) onNotification(data []byte) {
	if c.closed.Load() {
		return
	}
	payload := make([]byte, len(data))
	copy(payload, data)
	c.frames.Send(Frame{Data: payload})
}

// Close stops notifications, then disconnects. Each step is best-effort with
// failures logged only.
func (c *bleConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	if err := c.client.Unsubscribe(c.char, false); err != nil {
		c.logger.WithError(err).Debug("Stopping notifications failed")
	}
	if err := c.client.CancelConnection(); err != nil {
		c.logger.WithError(err).Warn("BLE disconnect failed")
	}
	if err := c.dev.Stop(); err != nil {
		c.logger.WithError(err).Debug("Stopping BLE device failed")
	}

	c.frames.Close()
	c.logger.Info("BLE sensor disconnected")
	return nil
}
