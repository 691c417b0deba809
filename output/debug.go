package output

import (
	"fmt"
	"io"

	"github.com/odflow/odflow/hhh"
	"github.com/odflow/odflow/odflow"
)

// WriteDebug emits the terse "# key: value, ..." debug dump (spec §6),
// grounded on agurim_plot.c:debug_preamble_print/debug_odflow_print.
func WriteDebug(w io.Writer, s *Summary) error {
	if _, err := fmt.Fprintf(w, "# criteria: %s, interval: %d, nflows: %d, duration: %d, start_time: %d, end_time: %d\n",
		criterionLabel(s.Query.Criteria), int64(s.Interval.Seconds()), s.NFlows,
		int64(s.EndTime.Sub(s.StartTime).Seconds()), s.StartTime.Unix(), s.EndTime.Unix()); err != nil {
		return err
	}

	if _, err := fmt.Fprint(w, "# labels:"); err != nil {
		return err
	}
	i := 0
	var err error
	s.Result.Each(func(o *odflow.Odflow) {
		if err != nil {
			return
		}
		i++
		if _, werr := fmt.Fprintf(w, "\"[%2d] %s %.2f%%  ", i, FormatOdflow(o), s.criterionPct(o)); werr != nil {
			err = werr
			return
		}

		hhh.CountSort(&o.Sub, s.Query.Criteria)
		n := 0
		o.Sub.Each(func(sub *odflow.Odflow) {
			if err != nil || (sub.Spec.Srclen == 0 && sub.Spec.Dstlen == 0) {
				return
			}
			if _, werr := fmt.Fprintf(w, "[%s] %.2f%% ", FormatProto(&sub.Spec), s.subPct(o, sub)); werr != nil {
				err = werr
				return
			}
			n++
		})
		if err != nil {
			return
		}
		if n == 0 {
			if _, werr := fmt.Fprint(w, "[*:*:*] 100.00% "); werr != nil {
				err = werr
				return
			}
		}
		if _, werr := fmt.Fprint(w, "\", "); werr != nil {
			err = werr
		}
	})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprint(w, "\"TOTAL\"\n\n"); err != nil {
		return err
	}

	for i := 0; i < len(s.Timestamps)-1; i++ {
		if _, err := fmt.Fprintf(w, "%d, ", s.Timestamps[i].Unix()); err != nil {
			return err
		}
		var total uint64
		var werr error
		s.Result.Each(func(o *odflow.Odflow) {
			if werr != nil {
				return
			}
			cnt := o.IdxCache.Get(i)
			total += cnt
			if _, e := fmt.Fprintf(w, "%d, ", cnt); e != nil {
				werr = e
			}
		})
		if werr != nil {
			return werr
		}
		if _, err := fmt.Fprintf(w, "%d\n", total); err != nil {
			return err
		}
	}
	return nil
}
