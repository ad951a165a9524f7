package service

import (
	"context"

	"factorflow/internal/model"
	"factorflow/internal/repository"

	"gorm.io/gorm"
)

// QueryService 只读查询聚合
type QueryService struct {
	invoiceRepo *repository.InvoiceRepository
	fundingRepo *repository.FundingRecordRepository
	vaultRepo   *repository.VaultRepository
}

func NewQueryService(db *gorm.DB) *QueryService {
	return &QueryService{
		invoiceRepo: repository.NewInvoiceRepository(db),
		fundingRepo: repository.NewFundingRecordRepository(db),
		vaultRepo:   repository.NewVaultRepository(db),
	}
}

func (s *QueryService) GetInvoice(ctx context.Context, id int64) (*model.Invoice, error) {
	return s.invoiceRepo.GetByID(ctx, id)
}

func (s *QueryService) GetInvoiceByExternalID(ctx context.Context, externalID string) (*model.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, repository.ErrInvoiceNotFound
	}
	return invoice, nil
}

type InvoicePage struct {
	List     []*model.Invoice `json:"list"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

func (s *QueryService) ListBySupplier(ctx context.Context, supplierID int64, page, pageSize int) (*InvoicePage, error) {
	page, pageSize = normalizePage(page, pageSize)
	invoices, total, err := s.invoiceRepo.ListBySupplier(ctx, supplierID, page, pageSize)
	if err != nil {
		return nil, err
	}
	return &InvoicePage{List: invoices, Total: total, Page: page, PageSize: pageSize}, nil
}

func (s *QueryService) ListByBuyer(ctx context.Context, buyerID int64, page, pageSize int) (*InvoicePage, error) {
	page, pageSize = normalizePage(page, pageSize)
	invoices, total, err := s.invoiceRepo.ListByBuyer(ctx, buyerID, page, pageSize)
	if err != nil {
		return nil, err
	}
	return &InvoicePage{List: invoices, Total: total, Page: page, PageSize: pageSize}, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// GetPosition 持有人的份额持仓（无持仓返回0）
func (s *QueryService) GetPosition(ctx context.Context, holderID int64) (int64, error) {
	position, err := s.vaultRepo.GetPosition(ctx, holderID)
	if err != nil {
		if err == repository.ErrPositionNotFound {
			return 0, nil
		}
		return 0, err
	}
	return position.Shares, nil
}

// SystemStats 全局运营快照
type SystemStats struct {
	StatusCounts       map[string]int64 `json:"status_counts"`
	FundedFaceTotal    int64            `json:"funded_face_total"`
	FundedAmountTotal  int64            `json:"funded_amount_total"`
	TotalShares        int64            `json:"total_shares"`
	TotalAssets        int64            `json:"total_assets"`
	AvailableLiquidity int64            `json:"available_liquidity"`
	TotalDeployed      int64            `json:"total_deployed"`
	TotalInTreasury    int64            `json:"total_in_treasury"`
	Paused             bool             `json:"paused"`
}

func (s *QueryService) GetStats(ctx context.Context) (*SystemStats, error) {
	counts, err := s.invoiceRepo.GetStatusCounts(ctx)
	if err != nil {
		return nil, err
	}

	faceTotal, fundingTotal, err := s.invoiceRepo.SumByStatus(ctx, model.InvoiceStatusFunded)
	if err != nil {
		return nil, err
	}

	state, err := s.vaultRepo.GetOrInitState(ctx)
	if err != nil {
		return nil, err
	}

	return &SystemStats{
		StatusCounts:       counts,
		FundedFaceTotal:    faceTotal,
		FundedAmountTotal:  fundingTotal,
		TotalShares:        state.TotalShares,
		TotalAssets:        state.TotalAssets(),
		AvailableLiquidity: state.AvailableLiquidity,
		TotalDeployed:      state.TotalDeployed,
		TotalInTreasury:    state.TotalInTreasury,
		Paused:             state.Paused,
	}, nil
}
