package job

import (
	"context"
	"log"
	"time"

	"factorflow/internal/config"
	"factorflow/internal/model"
	"factorflow/internal/repository"

	"gorm.io/gorm"
)

// FundingReconcilerJob 放款对账任务
// 发票状态机与执行层 FundingRecord 互为交叉校验，正常情况下同一事务内联动；
// 这里兜底扫描两者脱钩的情况：
//   1. 发票已 FUNDED 但没有放款记录 —— 严重事故，只告警不自动修复
//   2. 放款记录已 repaid 但发票还停在 FUNDED —— 补偿推进到 PAID
type FundingReconcilerJob struct {
	db          *gorm.DB
	invoiceRepo *repository.InvoiceRepository
	fundingRepo *repository.FundingRecordRepository
	cfg         *config.Config
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int
	lookback    time.Duration
}

func NewFundingReconcilerJob(db *gorm.DB, cfg *config.Config) *FundingReconcilerJob {
	return &FundingReconcilerJob{
		db:          db,
		invoiceRepo: repository.NewInvoiceRepository(db),
		fundingRepo: repository.NewFundingRecordRepository(db),
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		interval:    30 * time.Second,
		batchSize:   50,
		lookback:    24 * time.Hour,
	}
}

func (j *FundingReconcilerJob) Start(ctx context.Context) {
	log.Println("[FundingReconciler] 放款对账任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[FundingReconciler] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[FundingReconciler] 任务停止")
			return
		case <-ticker.C:
			j.reconcile(ctx)
		}
	}
}

func (j *FundingReconcilerJob) Stop() {
	close(j.stopCh)
}

func (j *FundingReconcilerJob) reconcile(ctx context.Context) {
	since := time.Now().Add(-j.lookback)
	invoices, err := j.invoiceRepo.GetRecentFunded(ctx, since, j.batchSize)
	if err != nil {
		log.Printf("[FundingReconciler] 查询已放款发票失败: %v", err)
		return
	}

	for _, invoice := range invoices {
		j.reconcileInvoice(ctx, invoice)
	}
}

func (j *FundingReconcilerJob) reconcileInvoice(ctx context.Context, invoice *model.Invoice) {
	record, err := j.fundingRepo.GetByInvoiceID(ctx, nil, invoice.ID)
	if err != nil {
		log.Printf("[FundingReconciler] 查询放款记录失败: invoiceNo=%s, err=%v", invoice.InvoiceNo, err)
		return
	}

	if record == nil || !record.Funded {
		// 状态已推进但资金未落实，说明有调用绕过了事务边界
		log.Printf("[FundingReconciler] 告警！发票已 FUNDED 但无放款记录: invoiceNo=%s, invoiceID=%d",
			invoice.InvoiceNo, invoice.ID)
		return
	}

	if record.Repaid {
		log.Printf("[FundingReconciler] 发现已还款但状态未更新的发票: invoiceNo=%s", invoice.InvoiceNo)

		err := j.invoiceRepo.UpdateStatus(ctx, nil, invoice.ID, model.InvoiceStatusFunded, model.InvoiceStatusPaid)
		if err != nil {
			log.Printf("[FundingReconciler] 补偿更新发票状态失败: invoiceNo=%s, err=%v", invoice.InvoiceNo, err)
		} else {
			log.Printf("[FundingReconciler] 补偿成功，发票状态已更新为 PAID: invoiceNo=%s", invoice.InvoiceNo)
		}
	}
}
