// Package bratbench benchmarks tree ensembles on synthetic and real
// regression problems, with a focus on BRAT (Boulevard regularised additive
// trees) against classical boosting and bagging.
//
// # Model families
//
//   - GBT: gradient boosting on squared error (sklearn/ensemble)
//   - XGBoost, LightGBM: second-order histogram boosting with depth-wise or
//     leaf-wise growth (sklearn/gbdt)
//   - RF: random forest (sklearn/ensemble)
//   - ElasticNet: coordinate descent (sklearn/linear_model)
//   - GAM: penalised cubic B-splines (sklearn/gam)
//   - BRATD, Boulevard, BRATP: averaged boosting with tree dropout, without
//     dropout, and with parallel tree groups (brat)
//
// # Running an experiment
//
// Experiments are described in HCL and run with the bratbench command:
//
//	bratbench run -c configs/friedman1.hcl
//	bratbench plot results/results_friedman1.json
//	bratbench calibrate -c configs/friedman1.hcl -e auto_mpg
//
// The same pipeline is available as a library:
//
//	ds, _ := datasets.Generate("friedman1", datasets.WithSeed(7))
//	mse, params, err := experiment.TrainAll(ctx, ds, experiment.Options{
//	    Epoch:  100,
//	    Tune:   true,
//	    Models: []string{models.GBT, models.BRATD},
//	    Manual: map[string]models.Params{
//	        models.BRATD: {"n_estimators": 100, "learning_rate": 1.0,
//	            "max_depth": 3, "dropout_rate": 0.1, "subsample_rate": 0.8},
//	    },
//	})
//
// mse holds one test-MSE value per ensemble size for every tree family and
// a single value for ElasticNet and GAM.
//
// # Logging and errors
//
// pkg/log provides structured logging over slog, tint or zerolog, selected
// with log.SetupLogger. pkg/errors wraps cockroachdb/errors; every error
// returned by the module carries a stack trace.
package bratbench
