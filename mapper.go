package vortex

type responseStage struct {
	level  string
	mapper ResponseMapper
}

type errorStage struct {
	level  string
	mapper ErrorMapper
}

// collectResponseMappers flattens the per-level mapper lists. A level with
// InheritMappers=false drops everything collected below it.
func collectResponseMappers(levels []mapperLevel) []responseStage {
	var stages []responseStage
	for _, lvl := range levels {
		if lvl.inherit != nil && !*lvl.inherit {
			stages = stages[:0]
		}
		for _, m := range lvl.response {
			if m != nil {
				stages = append(stages, responseStage{level: lvl.name, mapper: m})
			}
		}
	}
	return stages
}

func collectErrorMappers(levels []mapperLevel) []errorStage {
	var stages []errorStage
	for _, lvl := range levels {
		if lvl.inherit != nil && !*lvl.inherit {
			stages = stages[:0]
		}
		for _, m := range lvl.errors {
			if m != nil {
				stages = append(stages, errorStage{level: lvl.name, mapper: m})
			}
		}
	}
	return stages
}

// applyResponseMappers runs the response pipeline. A stage that fails or
// panics is logged and skipped.
func applyResponseMappers(value any, cfg *RequestConfig, logger Logger) any {
	if cfg.DisableMappers || cfg.DisableResponseMapper {
		return value
	}
	for i, stage := range collectResponseMappers(cfg.mappers) {
		safely(logger, "responseMapper", func() error {
			next, err := stage.mapper(value, cfg)
			if err != nil {
				return err
			}
			if next != nil {
				value = next
			}
			return nil
		}, "level", stage.level, "index", i, "requestID", cfg.RequestID)
	}
	return value
}

// applyErrorMappers runs the error pipeline with the same isolation rules.
func applyErrorMappers(ce *ClientError, cfg *RequestConfig, logger Logger) *ClientError {
	if cfg.DisableMappers || cfg.DisableErrorMapper {
		return ce
	}
	for i, stage := range collectErrorMappers(cfg.mappers) {
		safely(logger, "errorMapper", func() error {
			next, err := stage.mapper(ce, cfg)
			if err != nil {
				return err
			}
			if next != nil {
				ce = next
			}
			return nil
		}, "level", stage.level, "index", i, "requestID", cfg.RequestID)
	}
	return ce
}
