package core

import (
	"context"

	"agroqc/pkg/domain"
)

// CreateProduct persists a new product. Missing code, state and registration
// date are filled in.
func (s *Service) CreateProduct(ctx context.Context, product Product) (Product, Result, error) {
	var created Product
	res, err := s.run(ctx, "create_product", func(tx Transaction) (string, error) {
		if err := s.assignCode(EntityProduct, &product.Code); err != nil {
			return "", err
		}
		if product.State == "" {
			product.State = domain.ProductActive
		}
		if product.RegisteredOn.IsZero() {
			product.RegisteredOn = s.now()
		}
		if err := domain.Validate(EntityProduct, product); err != nil {
			return product.Code, err
		}
		var err error
		created, err = tx.CreateProduct(product)
		return product.Code, err
	})
	return created, res, err
}

// UpdateProduct mutates a product. The code cannot change.
func (s *Service) UpdateProduct(ctx context.Context, code string, mutator func(*Product) error) (Product, Result, error) {
	var updated Product
	res, err := s.run(ctx, "update_product", func(tx Transaction) (string, error) {
		var err error
		updated, err = tx.UpdateProduct(code, func(p *Product) error {
			if err := mutator(p); err != nil {
				return err
			}
			return domain.Validate(EntityProduct, *p)
		})
		return code, err
	})
	return updated, res, err
}

// DeleteProduct removes a product that no batch references.
func (s *Service) DeleteProduct(ctx context.Context, code string) (Result, error) {
	return s.run(ctx, "delete_product", func(tx Transaction) (string, error) {
		return code, tx.DeleteProduct(code)
	})
}

// GetProduct returns a product by code.
func (s *Service) GetProduct(ctx context.Context, code string) (Product, error) {
	var out Product
	err := s.view(ctx, "get_product", func(v TransactionView) error {
		p, ok := v.FindProduct(code)
		if !ok {
			return domain.ErrNotFound{Entity: EntityProduct, ID: code}
		}
		out = p
		return nil
	})
	return out, err
}

// ListProducts returns every product ordered by creation.
func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	var out []Product
	err := s.view(ctx, "list_products", func(v TransactionView) error {
		out = v.ListProducts()
		return nil
	})
	return out, err
}

// BatchFilter narrows ListBatches. Zero fields match everything.
type BatchFilter struct {
	Status      domain.BatchStatus
	ProductCode string
}

func (f BatchFilter) match(b Batch) bool {
	return (f.Status == "" || b.Status == f.Status) &&
		(f.ProductCode == "" || b.ProductCode == f.ProductCode)
}

// CreateBatch registers a harvested batch. Batches always start NEW.
func (s *Service) CreateBatch(ctx context.Context, batch Batch) (Batch, Result, error) {
	var created Batch
	res, err := s.run(ctx, "create_batch", func(tx Transaction) (string, error) {
		if err := s.assignCode(EntityBatch, &batch.Code); err != nil {
			return "", err
		}
		batch.Status = domain.BatchNew
		if err := domain.Validate(EntityBatch, batch); err != nil {
			return batch.Code, err
		}
		var err error
		created, err = tx.CreateBatch(batch)
		return batch.Code, err
	})
	return created, res, err
}

// UpdateBatch edits batch metadata. Status is derived from checks, reports
// and shipments and cannot be set here.
func (s *Service) UpdateBatch(ctx context.Context, code string, mutator func(*Batch) error) (Batch, Result, error) {
	var updated Batch
	res, err := s.run(ctx, "update_batch", func(tx Transaction) (string, error) {
		var err error
		updated, err = tx.UpdateBatch(code, func(b *Batch) error {
			status := b.Status
			if err := mutator(b); err != nil {
				return err
			}
			if b.Status != status {
				return domain.ValidationError{Entity: EntityBatch, Fields: []domain.FieldError{{
					Field:   "status",
					Message: "is derived from quality reports and shipments",
				}}}
			}
			return domain.Validate(EntityBatch, *b)
		})
		return code, err
	})
	return updated, res, err
}

// GetBatch returns a batch by code.
func (s *Service) GetBatch(ctx context.Context, code string) (Batch, error) {
	var out Batch
	err := s.view(ctx, "get_batch", func(v TransactionView) error {
		b, ok := v.FindBatch(code)
		if !ok {
			return domain.ErrNotFound{Entity: EntityBatch, ID: code}
		}
		out = b
		return nil
	})
	return out, err
}

// ListBatches returns batches matching filter ordered by creation.
func (s *Service) ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error) {
	var out []Batch
	err := s.view(ctx, "list_batches", func(v TransactionView) error {
		out = make([]Batch, 0)
		for _, b := range v.ListBatches() {
			if filter.match(b) {
				out = append(out, b)
			}
		}
		return nil
	})
	return out, err
}

// ListShipmentEligibleBatches returns the batches a shipment trace may be created for.
func (s *Service) ListShipmentEligibleBatches(ctx context.Context) ([]Batch, error) {
	var out []Batch
	err := s.view(ctx, "list_shipment_eligible_batches", func(v TransactionView) error {
		out = make([]Batch, 0)
		for _, b := range v.ListBatches() {
			if b.ShipmentEligible() {
				out = append(out, b)
			}
		}
		return nil
	})
	return out, err
}

// BatchHistory returns every record attached to a batch.
func (s *Service) BatchHistory(ctx context.Context, code string) (BatchRecords, error) {
	var out BatchRecords
	err := s.view(ctx, "batch_history", func(v TransactionView) error {
		records, ok := v.BatchRecords(code)
		if !ok {
			return domain.ErrNotFound{Entity: EntityBatch, ID: code}
		}
		out = records
		return nil
	})
	return out, err
}

// markInProcess moves a NEW batch to IN_PROCESS once a check is recorded.
func markInProcess(tx Transaction, code string) error {
	b, ok := tx.Snapshot().FindBatch(code)
	if !ok {
		return domain.ErrNotFound{Entity: EntityBatch, ID: code}
	}
	if b.Status != domain.BatchNew {
		return nil
	}
	_, err := tx.UpdateBatch(code, func(b *Batch) error {
		return b.Transition(domain.BatchInProcess)
	})
	return err
}
