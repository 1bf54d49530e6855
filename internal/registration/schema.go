package registration

import "histokit/internal/param"

// Algorithm is the name the registrar's config reports.
const Algorithm = "ImageRegister"

// Parameter names.
const (
	ParamSamplingRate   = "sampling_rate"
	ParamHistogramBins  = "num_hist_bin"
	ParamLearningRate   = "learning_rate"
	ParamMinStep        = "min_step"
	ParamIterations     = "num_iter"
	ParamGradTolerance  = "grad_tol"
	ParamRelaxFactor    = "relax_factor"
	ParamShrinkFactor   = "shrink_factor"
	ParamSmoothSigma    = "smooth_sigma"
	ParamCheckerPattern = "checker_pattern"
)

// Schema returns the registrar parameter table.
func Schema() param.Schema {
	return param.Schema{
		{
			Name:        ParamSamplingRate,
			Kind:        param.KindFloat,
			Range:       param.Between(0, 1),
			Description: "pixel sampling rate when calculating metric",
			Default:     0.01,
		},
		{
			Name:        ParamHistogramBins,
			Kind:        param.KindInt,
			Range:       param.Between(2, 256),
			Description: "number of histogram bins used in mutual information computation",
			Default:     60,
		},
		{
			Name:        ParamLearningRate,
			Kind:        param.KindFloat,
			Range:       param.AtLeast(0),
			Description: "learning rate of gradient descent",
			Default:     1.0,
		},
		{
			Name:        ParamMinStep,
			Kind:        param.KindFloat,
			Range:       param.AtLeast(0),
			Description: "minimum step of step gradient descent",
			Default:     0.01,
		},
		{
			Name:        ParamIterations,
			Kind:        param.KindInt,
			Range:       param.AtLeast(1),
			Description: "maximum iteration of gradient descent",
			Default:     100,
		},
		{
			Name:        ParamGradTolerance,
			Kind:        param.KindFloat,
			Range:       param.AtLeast(0),
			Description: "gradient tolerance to determine convergence",
			Default:     1e-8,
		},
		{
			Name:        ParamRelaxFactor,
			Kind:        param.KindFloat,
			Range:       param.Between(0, 1),
			Description: "relaxation factor of learning rate of gradient descent",
			Default:     0.5,
		},
		{
			Name:        ParamShrinkFactor,
			Kind:        param.KindIntList,
			Range:       param.AtLeast(1),
			Description: "shrink factor for multi resolution iteration",
			Default:     []int{4, 2, 1},
		},
		{
			Name:        ParamSmoothSigma,
			Kind:        param.KindIntList,
			Range:       param.AtLeast(0),
			Description: "sigma of smoothing Gaussian kernel used at each resolution",
			Default:     []int{2, 1, 0},
		},
		{
			Name:        ParamCheckerPattern,
			Kind:        param.KindIntList,
			Range:       param.AtLeast(1),
			Description: "checkerboard tiles along x and y of the comparison image",
			Default:     []int{20, 20},
		},
	}
}
