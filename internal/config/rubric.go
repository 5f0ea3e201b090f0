package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-qualifier/internal/model"
)

// LoadRubric reads the scoring rubric from a YAML file. A missing file (or an
// empty path) yields the built-in rubric. Thresholds absent from the file are
// taken from sc.
func LoadRubric(path string, sc ScoringConfig) (model.Rubric, error) {
	r := model.DefaultRubric()
	applyThresholds(&r, sc)

	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			zap.L().Debug("rubric: file not found, using default", zap.String("path", path))
			return r, nil
		}
		return model.Rubric{}, eris.Wrapf(err, "rubric: read %s", path)
	}

	var rf rubricFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return model.Rubric{}, eris.Wrapf(err, "rubric: parse %s", path)
	}

	if rf.QualificationThreshold != nil {
		r.QualificationThreshold = *rf.QualificationThreshold
	}
	if rf.AutoRejectThreshold != nil {
		r.AutoRejectThreshold = *rf.AutoRejectThreshold
	}
	if len(rf.Criteria) > 0 {
		r.Criteria = rf.Criteria
	}

	if err := r.Validate(); err != nil {
		return model.Rubric{}, eris.Wrapf(err, "rubric: %s", path)
	}

	zap.L().Info("rubric: loaded", zap.String("path", path), zap.Stringer("rubric", r))
	return r, nil
}

// rubricFile distinguishes an explicit zero threshold from an absent one.
type rubricFile struct {
	QualificationThreshold *int              `yaml:"qualification_threshold"`
	AutoRejectThreshold    *int              `yaml:"auto_reject_threshold"`
	Criteria               []model.Criterion `yaml:"criteria"`
}

func applyThresholds(r *model.Rubric, sc ScoringConfig) {
	if sc.QualificationThreshold > 0 {
		r.QualificationThreshold = sc.QualificationThreshold
	}
	if sc.AutoRejectThreshold > 0 {
		r.AutoRejectThreshold = sc.AutoRejectThreshold
	}
}
