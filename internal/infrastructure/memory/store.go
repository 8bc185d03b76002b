// Package memory implementa los repositorios en memoria con transacciones serializadas.
// Sirve para desarrollo local (STORAGE_DRIVER=memory) y para los tests de los casos de uso.
//
// Una transacción toma el lock global, trabaja sobre una copia del estado y la publica solo
// si fn no devuelve error; así el correlativo y el comprobante se confirman o descartan juntos.
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/tributa-api/internal/application/billing"
	"github.com/jhoicas/tributa-api/internal/application/declaration"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
	"github.com/jhoicas/tributa-api/internal/domain/repository"
)

var (
	_ billing.BillingTxRunner = (*Store)(nil)
	_ declaration.TxRunner    = (*Store)(nil)
)

type state struct {
	sequences    map[string]*entity.SequenceCounter
	invoices     map[string]*entity.Invoice
	invoiceKeys  map[string]string // owner|serie|número -> id
	declarations map[string]*entity.Declaration
	processes    map[string]*entity.SireProcess
	processOrder []string
	taxpayers    map[string]*entity.TaxpayerProfile
}

func newState() *state {
	return &state{
		sequences:    make(map[string]*entity.SequenceCounter),
		invoices:     make(map[string]*entity.Invoice),
		invoiceKeys:  make(map[string]string),
		declarations: make(map[string]*entity.Declaration),
		processes:    make(map[string]*entity.SireProcess),
		taxpayers:    make(map[string]*entity.TaxpayerProfile),
	}
}

// clone copia los mapas. Los valores no se mutan en sitio (cada escritura guarda un puntero
// nuevo), por lo que compartirlos entre copias es seguro.
func (s *state) clone() *state {
	c := &state{
		sequences:    make(map[string]*entity.SequenceCounter, len(s.sequences)),
		invoices:     make(map[string]*entity.Invoice, len(s.invoices)),
		invoiceKeys:  make(map[string]string, len(s.invoiceKeys)),
		declarations: make(map[string]*entity.Declaration, len(s.declarations)),
		processes:    make(map[string]*entity.SireProcess, len(s.processes)),
		processOrder: append([]string(nil), s.processOrder...),
		taxpayers:    make(map[string]*entity.TaxpayerProfile, len(s.taxpayers)),
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	for k, v := range s.invoiceKeys {
		c.invoiceKeys[k] = v
	}
	for k, v := range s.declarations {
		c.declarations[k] = v
	}
	for k, v := range s.processes {
		c.processes[k] = v
	}
	for k, v := range s.taxpayers {
		c.taxpayers[k] = v
	}
	return c
}

// Store almacén en memoria.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{st: newState()}
}

// view acceso al estado: fuera de transacción toma el lock por operación; dentro usa la copia.
type view struct {
	s  *Store
	tx *state
}

func (v view) read(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return fn(v.s.st)
}

// write fuera de transacción es atómica: si fn falla el estado no cambia.
func (v view) write(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	next := v.s.st.clone()
	if err := fn(next); err != nil {
		return err
	}
	v.s.st = next
	return nil
}

func (s *Store) run(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.st.clone()
	if err := fn(next); err != nil {
		return err
	}
	s.st = next
	return nil
}

// RunBilling transacción de contadores y comprobantes.
func (s *Store) RunBilling(ctx context.Context, fn func(
	sequenceRepo repository.SequenceRepository,
	invoiceRepo repository.InvoiceRepository,
) error) error {
	return s.run(ctx, func(st *state) error {
		v := view{s: s, tx: st}
		return fn(&SequenceRepo{v}, &InvoiceRepo{v})
	})
}

// RunDeclarations transacción sobre declaraciones.
func (s *Store) RunDeclarations(ctx context.Context, fn func(repo repository.DeclarationRepository) error) error {
	return s.run(ctx, func(st *state) error {
		return fn(&DeclarationRepo{view{s: s, tx: st}})
	})
}

// Sequences repositorio de contadores fuera de transacción.
func (s *Store) Sequences() *SequenceRepo { return &SequenceRepo{view{s: s}} }

// Invoices repositorio de comprobantes.
func (s *Store) Invoices() *InvoiceRepo { return &InvoiceRepo{view{s: s}} }

// Declarations repositorio de declaraciones.
func (s *Store) Declarations() *DeclarationRepo { return &DeclarationRepo{view{s: s}} }

// Processes repositorio de procesos SIRE.
func (s *Store) Processes() *SireProcessRepo { return &SireProcessRepo{view{s: s}} }

// Taxpayers repositorio de perfiles tributarios.
func (s *Store) Taxpayers() *TaxpayerRepo { return &TaxpayerRepo{view{s: s}} }
