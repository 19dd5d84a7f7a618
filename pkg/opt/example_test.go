package opt_test

import (
	"fmt"
	"log"

	"github.com/stimtools/stimopt/pkg/opt"
)

func ExampleNew() {
	o := opt.New("optimization/single_target")
	o.Leadfield = "leadfield.hdf5"
	o.MaxActiveElectrodes = 8

	target := o.AddTarget()
	target.Position = []float64{-55.4, -20.7, 73.4}
	target.Intensity = 0.2

	if err := o.Validate(); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%s: %d target(s), %.1f mA budget\n", o.Name, len(o.Targets), o.MaxTotalCurrent*1e3)
	// Output: optimization/single_target: 1 target(s), 2.0 mA budget
}
