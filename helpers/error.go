package helpers

import "errors"

func FoldErrors(errs []error) (err error) {
	for _, e := range errs {
		err = errors.Join(err, e)
	}
	return err
}
