// Package pairing implements the device pairing flow: a friendly name
// derived from the device ID, a histogram rendering of that ID on the
// LED matrix, and a button-gated release of the flash code that
// authorizes firmware updates.
//
// The flow is deliberately low-security. It exists to tell one board
// apart from a classroom of others and to hand a peer a passcode it can
// cache for later updates. Pair requests arrive as bus events addressed
// to the service's source ID, so any transport (or the simulator) can
// drive a session; the left button press that releases the code arrives
// the same way.
package pairing

import (
	"errors"

	"github.com/solenoidlabs/fray/internal/bus"
	"github.com/solenoidlabs/fray/internal/device/button"
	"github.com/solenoidlabs/fray/internal/device/display"
	"github.com/solenoidlabs/fray/internal/fiber"
	"github.com/solenoidlabs/fray/internal/nvram"
)

// Histogram geometry. The device ID renders as HistogramWidth columns of
// base-HistogramHeight digits, and the friendly name spells those digits
// through the codebook.
const (
	HistogramWidth  = 5
	HistogramHeight = 5
)

// Events sent with the service's source ID.
const (
	// EventPairRequest asks the service to offer its flash code. Sent by
	// transports; the service listens for it.
	EventPairRequest = 1

	// EventCodeReleased reports the flash code is readable by the peer.
	EventCodeReleased = 2

	// EventAuthenticated reports the session may begin firmware updates.
	EventAuthenticated = 3

	// EventDropped reports the session state was discarded.
	EventDropped = 4
)

// Identity defaults, used when the board supplies no hardware ID words.
const (
	DefaultDeviceID  = 0xbabe
	DefaultFlashCode = 0xcafe
)

// DefaultPairButton is the source ID of the left button.
const DefaultPairButton = 1

// recordKey addresses the persisted session record.
const recordKey = "pairing"

// ErrNotAuthenticated rejects update requests before the pairing flow
// has completed.
var ErrNotAuthenticated = errors.New("pairing: not authenticated")

// codebook maps base-5 digits of the device ID to name letters. Rows
// alternate consonants and vowels so every name is pronounceable.
var codebook = [HistogramWidth][HistogramHeight]byte{
	{'z', 'v', 'g', 'p', 't'},
	{'u', 'o', 'i', 'e', 'a'},
	{'z', 'v', 'g', 'p', 't'},
	{'u', 'o', 'i', 'e', 'a'},
	{'z', 'v', 'g', 'p', 't'},
}

// record is the session state persisted to NVRAM.
type record struct {
	Name   string `json:"name"`
	Code   uint32 `json:"code"`
	Paired bool   `json:"paired"`
}

// Service runs the pairing flow for one board. All methods must be
// called on a fiber or before the scheduler starts; the service is part
// of the cooperatively scheduled runtime and does no locking of its own.
type Service struct {
	id      int
	bus     *bus.Bus
	sched   *fiber.Scheduler
	display *display.Display
	store   *nvram.Store
	cache   bus.DispatchCache

	deviceID    uint32
	flashCode   uint32
	pairButton  int
	scrollSpeed uint64
	name        string

	requested     bool
	released      bool
	authenticated bool
}

// Option configures a Service.
type Option func(*Service)

// WithDeviceID sets the hardware ID word the name and histogram derive
// from.
func WithDeviceID(id uint32) Option {
	return func(s *Service) {
		s.deviceID = id
	}
}

// WithFlashCode sets the passcode released to paired peers.
func WithFlashCode(code uint32) Option {
	return func(s *Service) {
		s.flashCode = code
	}
}

// WithStore attaches the NVRAM store the session record persists in.
func WithStore(store *nvram.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithPairButton sets the source ID of the button that confirms a pair
// request.
func WithPairButton(sourceID int) Option {
	return func(s *Service) {
		s.pairButton = sourceID
	}
}

// WithScrollSpeed sets the per-column delay of the session's scrolls.
func WithScrollSpeed(delayMS uint64) Option {
	return func(s *Service) {
		if delayMS > 0 {
			s.scrollSpeed = delayMS
		}
	}
}

// New creates the pairing service. id is the service's source ID on the
// bus. A previously persisted session with a matching flash code resumes
// as authenticated.
func New(id int, eb *bus.Bus, sched *fiber.Scheduler, disp *display.Display, opts ...Option) *Service {
	s := &Service{
		id:          id,
		bus:         eb,
		sched:       sched,
		display:     disp,
		deviceID:    DefaultDeviceID,
		flashCode:   DefaultFlashCode,
		pairButton:  DefaultPairButton,
		scrollSpeed: display.DefaultScrollSpeed,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.name = friendlyName(s.deviceID)
	s.resume()
	return s
}

// resume restores a persisted authenticated session.
func (s *Service) resume() {
	if s.store == nil {
		return
	}
	var rec record
	if err := s.store.Get(recordKey, &rec); err != nil {
		return
	}
	if rec.Paired && rec.Code == s.flashCode {
		s.authenticated = true
		s.released = true
	}
}

// Install registers the service's bus listeners: pair requests addressed
// to the service and presses of the pair button.
func (s *Service) Install() {
	s.bus.ListenFunc(s.id, EventPairRequest, func(bus.Event) {
		s.onPairRequest()
	})
	s.bus.ListenFunc(s.pairButton, button.EventClick, func(bus.Event) {
		s.onPairButton()
	})
}

// Name returns the board's friendly name.
func (s *Service) Name() string {
	return s.name
}

// Authenticated reports whether the session may begin firmware updates.
func (s *Service) Authenticated() bool {
	return s.authenticated
}

// FlashCode returns the passcode, or zero while it is still withheld.
func (s *Service) FlashCode() uint32 {
	if !s.released {
		return 0
	}
	return s.flashCode
}

// RequestPair posts a pair request to the service, as a transport would.
func (s *Service) RequestPair() {
	s.bus.Send(bus.NewEvent(s.id, EventPairRequest, s.sched.Ticks()), &s.cache)
}

// Authenticate grants update rights directly when the caller already
// knows the flash code. A wrong code drops any prior authentication.
func (s *Service) Authenticate(code uint32) bool {
	s.authenticated = code == s.flashCode
	return s.authenticated
}

// BeginUpdate gates the firmware update path behind a completed pairing.
func (s *Service) BeginUpdate() error {
	if !s.authenticated {
		return ErrNotAuthenticated
	}
	return nil
}

// Pair runs the interactive session: announce the blue zone, then show
// the name histogram and leave the listeners to finish the flow. Blocks
// on the announcement scroll, so it must run on its own fiber.
func (s *Service) Pair() {
	s.display.ScrollString("BLUE ZONE...", s.scrollSpeed)
	s.ShowNameHistogram()
}

// ShowNameHistogram renders the device ID as column heights, one column
// per base-5 digit, least significant digit rightmost.
func (s *Service) ShowNameHistogram() {
	s.display.StopAnimation()
	s.display.Clear()
	img := s.display.Image()

	n := int(s.deviceID)
	ld := 1
	d := HistogramHeight
	for i := 0; i < HistogramWidth; i++ {
		h := (n % d) / ld
		n -= h
		d *= HistogramHeight
		ld *= HistogramHeight
		for j := 0; j < h+1; j++ {
			img.SetPixel(HistogramWidth-1-i, HistogramHeight-1-j, 255)
		}
	}
	s.display.Touch()
}

// Disconnect discards session state, mirroring a peer dropping the link
// mid-flow. The persisted record keeps the name but loses the paired
// flag.
func (s *Service) Disconnect() {
	if !s.authenticated && !s.requested {
		return
	}
	s.requested = false
	s.released = false
	s.authenticated = false
	if s.store != nil {
		_ = s.store.SetField(recordKey, "paired", false)
	}
	s.sendEvent(EventDropped)
}

// onPairRequest arms the session and asks the user to confirm.
func (s *Service) onPairRequest() {
	s.requested = true
	s.display.ScrollStringAsync("PAIR?", s.scrollSpeed)
}

// onPairButton completes an armed session: release the code, show the
// tick, and mark the session authenticated.
func (s *Service) onPairButton() {
	if !s.requested {
		return
	}
	s.releaseFlashCode()
	s.showTick()
	s.requested = false
	s.authenticated = true
	s.persist()
	s.sendEvent(EventAuthenticated)
}

// releaseFlashCode makes the passcode readable and announces it.
func (s *Service) releaseFlashCode() {
	s.released = true
	s.sendEvent(EventCodeReleased)
}

// showTick draws the confirmation mark.
func (s *Service) showTick() {
	s.display.StopAnimation()
	s.display.Clear()
	img := s.display.Image()
	img.SetPixel(0, 3, 255)
	img.SetPixel(1, 4, 255)
	img.SetPixel(2, 3, 255)
	img.SetPixel(3, 2, 255)
	img.SetPixel(4, 1, 255)
	s.display.Touch()
}

// persist writes the session record through to NVRAM.
func (s *Service) persist() {
	if s.store == nil {
		return
	}
	_ = s.store.Put(recordKey, record{
		Name:   s.name,
		Code:   s.flashCode,
		Paired: true,
	})
}

func (s *Service) sendEvent(code int) {
	s.bus.Send(bus.NewEvent(s.id, code, s.sched.Ticks()), &s.cache)
}

// friendlyName spells the device ID through the codebook, one letter per
// base-5 digit, least significant digit last.
func friendlyName(deviceID uint32) string {
	var name [HistogramWidth]byte
	n := int(deviceID)
	ld := 1
	d := HistogramHeight
	for i := 0; i < HistogramWidth; i++ {
		h := (n % d) / ld
		n -= h
		d *= HistogramHeight
		ld *= HistogramHeight
		name[HistogramWidth-1-i] = codebook[i][h]
	}
	return string(name[:])
}
