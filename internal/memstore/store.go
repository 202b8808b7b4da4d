package memstore

import (
	"github.com/kestrelhq/portal/internal/domain"
)

// Store bundles one of each in-memory repository
type Store struct {
	Businesses *BusinessRepository
	Employees  *EmployeeRepository
	Documents  *DocumentRepository
	Surveys    *SurveyRepository
	Tasks      *TaskRepository
	Crons      *CronRepository
}

// New creates an empty store
func New() *Store {
	businesses := NewBusinessRepository()
	return &Store{
		Businesses: businesses,
		Employees:  NewEmployeeRepository(),
		Documents:  NewDocumentRepository(businesses),
		Surveys:    NewSurveyRepository(),
		Tasks:      NewTaskRepository(),
		Crons:      NewCronRepository(),
	}
}

// Seeded holds the records created by Seed
type Seeded struct {
	Business *domain.Business
	Policy   *domain.DocumentType
	Permit   *domain.DocumentType
}

// Seed loads a demo business with a signature policy and a permit upload, in that order
func (s *Store) Seed() Seeded {
	b := s.Businesses.AddBusiness(&domain.Business{
		Name:        "Wedgies",
		Slug:        "wedgies",
		Location:    "Portland, OR",
		WelcomeCopy: "Welcome to the Wedgies crew!",
		Active:      true,
	})
	policy := s.Businesses.AddDocumentType(&domain.DocumentType{
		Name:              "Employee Handbook Acknowledgement",
		Slug:              "handbook",
		StepType:          domain.StepSignature,
		RequiresSignature: true,
		CurrentVersion:    "1.0",
		Content:           "# Employee Handbook\nEffective {{EFFECTIVE_DATE}}\n\n**Read carefully.**\n---\n- Clock in on time\n- Wash your hands",
		Active:            true,
	})
	permit := s.Businesses.AddDocumentType(&domain.DocumentType{
		Name:               "Food Handler Permit",
		Slug:               "food-handler-permit",
		StepType:           domain.StepFileUpload,
		RequiresFileUpload: true,
		CurrentVersion:     "1.0",
		Active:             true,
	})
	s.Businesses.Require(domain.Requirement{BusinessID: b.ID, DocumentTypeID: policy.ID, Required: true, DisplayOrder: 1})
	s.Businesses.Require(domain.Requirement{BusinessID: b.ID, DocumentTypeID: permit.ID, Required: true, DisplayOrder: 2})
	return Seeded{Business: b, Policy: policy, Permit: permit}
}
