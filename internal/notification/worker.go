package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"machine-downtime-backend/internal/model"
)

// Alert describes a machine that just entered a non-running state.
type Alert struct {
	EventID     int64     `json:"eventId"`
	MachineCode string    `json:"machineCode"`
	MachineName string    `json:"machineName"`
	Operation   string    `json:"operation"`
	State       string    `json:"state"`
	At          time.Time `json:"at"`
}

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers for sending downtime alerts.
type WorkerPool struct {
	size    int
	jobs    chan Alert
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	log     logrus.FieldLogger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, log logrus.FieldLogger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Alert, size*16),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log.WithField("component", "notification"),
	}
}

// SetSender replaces the push transport. Call it before Start.
func (wp *WorkerPool) SetSender(sender NotificationSender) {
	wp.sender = sender
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log := wp.log.WithField("worker", id)
	log.Debug("Worker started")
	for {
		select {
		case alert := <-wp.jobs:
			log.WithField("machine_code", alert.MachineCode).Debug("Processing alert")
			wp.sendAlert(ctx, alert)
		case <-ctx.Done():
			log.Debug("Worker shutting down")
			return
		}
	}
}

// Dispatch queues an alert. When the queue is full the alert is dropped so
// that submissions never wait on push delivery.
func (wp *WorkerPool) Dispatch(alert Alert) {
	select {
	case wp.jobs <- alert:
	default:
		wp.log.WithField("machine_code", alert.MachineCode).Warn("Alert queue full, dropping alert")
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Alert {
	return wp.jobs
}

// Message renders the human readable alert text.
func (a Alert) Message() string {
	return fmt.Sprintf("Machine %s (%s) on %s is %s since %s",
		a.MachineName, a.MachineCode, a.Operation, a.State, a.At.Format("15:04"))
}

type payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Alert Alert  `json:"alert"`
}

// sendAlert fetches the subscribers of the alert's machine and notifies them.
func (wp *WorkerPool) sendAlert(ctx context.Context, alert Alert) {
	log := wp.log.WithField("machine_code", alert.MachineCode)

	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_machine_mapping smm ON smm.push_subscription_endpoint = push_subscriptions.endpoint").
		Joins("JOIN machines m ON m.id = smm.machine_id").
		Where("m.code = ?", alert.MachineCode).
		Find(&subscriptions).Error
	if err != nil {
		log.WithError(err).Error("Failed to fetch subscriptions")
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	body, err := json.Marshal(payload{
		Title: fmt.Sprintf("%s %s", alert.MachineName, alert.State),
		Body:  alert.Message(),
		Alert: alert,
	})
	if err != nil {
		log.WithError(err).Error("Failed to encode alert payload")
		return
	}

	log.WithField("subscribers", len(subscriptions)).Info("Sending downtime alerts")
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, body)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	log := wp.log.WithField("endpoint", sub.Endpoint)

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.WithError(err).Warn("Failed to send notification")
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Info("Subscription expired, deleting")
		if err := wp.db.WithContext(ctx).Select("Machines").Delete(&sub).Error; err != nil {
			log.WithError(err).Error("Failed to delete expired subscription")
		}
	}
}
