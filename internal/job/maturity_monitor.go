package job

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"factorflow/internal/config"
	"factorflow/internal/model"
	"factorflow/internal/repository"

	"gorm.io/gorm"
)

// MaturityMonitorJob 到期监控任务
// 扫描已放款且超过到期日的发票，发出 invoice.overdue 事件提醒催收；
// 超过宽限期的发票在日志中单独标注，等待运营方人工标记违约。
// 违约不自动触发：坏账核销会直接下调份额价格，必须有人拍板
type MaturityMonitorJob struct {
	db          *gorm.DB
	invoiceRepo *repository.InvoiceRepository
	outboxRepo  *repository.OutboxRepository
	cfg         *config.Config
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int

	mu       sync.Mutex
	notified map[int64]struct{} // 本进程内已发过逾期事件的发票
}

func NewMaturityMonitorJob(db *gorm.DB, cfg *config.Config) *MaturityMonitorJob {
	return &MaturityMonitorJob{
		db:          db,
		invoiceRepo: repository.NewInvoiceRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		interval:    time.Minute,
		batchSize:   100,
		notified:    make(map[int64]struct{}),
	}
}

func (j *MaturityMonitorJob) Start(ctx context.Context) {
	log.Println("[MaturityMonitor] 到期监控任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[MaturityMonitor] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[MaturityMonitor] 任务停止")
			return
		case <-ticker.C:
			j.scanOverdueInvoices(ctx)
		}
	}
}

func (j *MaturityMonitorJob) Stop() {
	close(j.stopCh)
}

func (j *MaturityMonitorJob) scanOverdueInvoices(ctx context.Context) {
	now := time.Now()
	invoices, err := j.invoiceRepo.GetFundedMaturedBefore(ctx, now, j.batchSize)
	if err != nil {
		log.Printf("[MaturityMonitor] 查询逾期发票失败: %v", err)
		return
	}

	if len(invoices) == 0 {
		return
	}

	grace := time.Duration(j.cfg.Business.GracePeriodDays) * 24 * time.Hour
	for _, invoice := range invoices {
		pastGrace := now.After(invoice.MaturityDate.Add(grace))
		if pastGrace {
			log.Printf("[MaturityMonitor] 发票已过宽限期，可标记违约: invoiceNo=%s, maturityDate=%s",
				invoice.InvoiceNo, invoice.MaturityDate.Format(time.RFC3339))
		}
		j.notifyOverdue(ctx, invoice, pastGrace)
	}
}

// notifyOverdue 每张发票只发一次逾期事件
// 进程重启后可能重发，下游按 invoice_no + type 去重
func (j *MaturityMonitorJob) notifyOverdue(ctx context.Context, invoice *model.Invoice, pastGrace bool) {
	j.mu.Lock()
	_, seen := j.notified[invoice.ID]
	if !seen {
		j.notified[invoice.ID] = struct{}{}
	}
	j.mu.Unlock()
	if seen {
		return
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"type":          model.EventInvoiceOverdue,
		"invoice_id":    invoice.ID,
		"invoice_no":    invoice.InvoiceNo,
		"buyer_id":      invoice.BuyerID,
		"face_value":    invoice.FaceValue,
		"maturity_date": invoice.MaturityDate.Format(time.RFC3339),
		"past_grace":    pastGrace,
		"timestamp":     time.Now().Format(time.RFC3339),
	})

	msg := &model.OutboxMessage{
		MessageKey: invoice.InvoiceNo,
		Topic:      j.cfg.Kafka.Topic.InvoiceEvents,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := j.outboxRepo.Create(ctx, nil, msg); err != nil {
		log.Printf("[MaturityMonitor] 写入逾期事件失败: invoiceNo=%s, err=%v", invoice.InvoiceNo, err)
		// 写入失败允许下一轮重发
		j.mu.Lock()
		delete(j.notified, invoice.ID)
		j.mu.Unlock()
		return
	}

	log.Printf("[MaturityMonitor] 发票逾期: invoiceNo=%s, buyerID=%d, faceValue=%d",
		invoice.InvoiceNo, invoice.BuyerID, invoice.FaceValue)
}
