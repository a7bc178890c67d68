package util

import (
	"fmt"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

// SnapshotSource renders one image and names the topic it goes to.
type SnapshotSource struct {
	Topic  func() string
	Render func() ([]byte, error)
}

// SnapshotForwarder publishes rendered images to MQTT on a fixed period
// through a small worker pool. Home Assistant's MQTT camera shows the last
// image seen on a topic.
type SnapshotForwarder struct {
	Frequency int64 `mapstructure:"frequency" validate:"min=1"`
	Workers   int64 `mapstructure:"workers" validate:"min=1,max=8"`
	Enabled   bool  `mapstructure:"enabled"`

	sources []SnapshotSource
	client  func() MQTT.Client
	queue   chan SnapshotSource
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
}

func NewSnapshotForwarder(sources ...SnapshotSource) *SnapshotForwarder {
	return &SnapshotForwarder{
		sources: sources,
		client:  CurrentClient,
	}
}

const (
	defaultSnapshotFrequency = 30
	defaultSnapshotWorkers   = 1
)

// Load reads the snapshot_forwarder section of Config. Keys missing from
// the section keep their defaults.
func (f *SnapshotForwarder) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Enabled = false
	f.Frequency = defaultSnapshotFrequency
	f.Workers = defaultSnapshotWorkers
	if err := Config.UnmarshalKey("snapshot_forwarder", f); err != nil {
		return fmt.Errorf("decoding snapshot_forwarder: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("invalid snapshot_forwarder: %w", err)
	}
	return nil
}

// Start launches the workers and the ticker. It does nothing when the
// forwarder is disabled or already running.
func (f *SnapshotForwarder) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Enabled || f.stop != nil {
		return
	}
	f.queue = make(chan SnapshotSource, f.Workers*4)
	f.stop = make(chan struct{})
	for i := 0; i < int(f.Workers); i++ {
		f.wg.Add(1)
		go f.worker(f.queue)
	}
	f.wg.Add(1)
	go f.tick(time.Duration(f.Frequency)*time.Second, f.queue, f.stop)
	Logger.Info().Msgf("snapshot forwarder started: %d worker(s) every %ds", f.Workers, f.Frequency)
}

func (f *SnapshotForwarder) tick(period time.Duration, queue chan<- SnapshotSource, stop <-chan struct{}) {
	defer f.wg.Done()
	defer close(queue)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for _, src := range f.sources {
				select {
				case queue <- src:
				default:
					Logger.Warn().Msg("snapshot queue full, skipping")
				}
			}
		}
	}
}

func (f *SnapshotForwarder) worker(jobs <-chan SnapshotSource) {
	defer f.wg.Done()
	for job := range jobs {
		f.process(job)
	}
}

func (f *SnapshotForwarder) process(job SnapshotSource) {
	client := f.client()
	if client == nil || !client.IsConnected() {
		return
	}
	img, err := job.Render()
	if err != nil {
		Logger.Debug().Msgf("Unable to render snapshot: %v", err)
		return
	}
	topic := job.Topic()
	if token := client.Publish(topic, byte(0), false, img); token.Wait() && token.Error() != nil {
		Logger.Warn().Msgf("Error publishing snapshot to %s: %v", topic, token.Error())
	}
}

// Stop halts the ticker and waits for queued snapshots to drain.
func (f *SnapshotForwarder) Stop() {
	f.mu.Lock()
	stop := f.stop
	f.stop = nil
	f.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	f.wg.Wait()
	Logger.Debug().Msg("snapshot forwarder stopped")
}

// Reload applies a new config section: stop, reload, start.
func (f *SnapshotForwarder) Reload() {
	f.Stop()
	if err := f.Load(); err != nil {
		Logger.Error().Err(err).Msg("Error loading snapshot forwarder config")
		return
	}
	f.Start()
}

// Running reports whether the ticker is active.
func (f *SnapshotForwarder) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stop != nil
}
